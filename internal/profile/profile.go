package profile

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	// MinValue and MaxValue bound every Likert and semantic-differential answer.
	MinValue = 1
	MaxValue = 5

	LikertPrefix  = "likert."
	SemDiffPrefix = "semDiff."
)

// Likerts are the Likert-scale questions every profile answers.
var Likerts = []string{
	"valuesFriendship",
	"valuesFamily",
	"valuesCommunity",
	"valuesSelf",
	"valuesFaith",
	"valuesEducation",
	"valuesHealth",
	"valuesStrength",
}

// SemDiffs are the semantic-differential questions every profile answers.
var SemDiffs = []string{
	"dogCat",
	"donutMunchkins",
	"cakePie",
	"steelersPirates",
}

// Origins are the categorical origins a profile may have.
var Origins = []string{
	"AK", "AL", "AR", "AZ", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "IA", "ID", "IL", "IN", "KS", "KY", "LA", "MA", "MD",
	"ME", "MI", "MN", "MO", "MS", "MT", "NC", "ND", "NE", "NH",
	"NJ", "NM", "NV", "NY", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VA", "VT", "WA", "WI", "WV", "WY",
}

var errNoID = errors.New("profile id is required")

type Profile struct {
	ID        string         `json:"id" mapstructure:"id"`
	NameFirst string         `json:"nameFirst" mapstructure:"nameFirst"`
	NameLast  string         `json:"nameLast" mapstructure:"nameLast"`
	Origin    string         `json:"origin" mapstructure:"origin"`
	Likert    map[string]int `json:"likert" mapstructure:"likert"`
	SemDiff   map[string]int `json:"semDiff" mapstructure:"semDiff"`
}

// AttributeCount is the length of Vector().
func AttributeCount() int {
	return len(Likerts) + len(SemDiffs)
}

// AttributeNames returns the attribute column names in canonical order.
func AttributeNames() []string {
	names := make([]string, 0, AttributeCount())
	for _, l := range Likerts {
		names = append(names, LikertPrefix+l)
	}
	for _, s := range SemDiffs {
		names = append(names, SemDiffPrefix+s)
	}
	return names
}

// Headers returns the CSV header of a profile file.
func Headers() []string {
	return append([]string{"id", "nameFirst", "nameLast", "origin"}, AttributeNames()...)
}

func New(id, first, last, origin string) *Profile {
	return &Profile{
		ID:        id,
		NameFirst: first,
		NameLast:  last,
		Origin:    origin,
		Likert:    make(map[string]int, len(Likerts)),
		SemDiff:   make(map[string]int, len(SemDiffs)),
	}
}

// Decode builds a profile from a loosely typed document, such as one parsed
// from a web form. Numbers given as strings are accepted and unknown keys
// (bio, phone, zipCode) are ignored. Fractional answers are rejected.
func Decode(doc map[string]any) (*Profile, error) {
	p := &Profile{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(rejectFractional),
		WeaklyTypedInput: true,
		Result:           p,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// DecodeAll decodes a list of documents. Ids must be unique.
func DecodeAll(docs []map[string]any) (*Profiles, error) {
	ps := &Profiles{Items: make([]*Profile, 0, len(docs))}
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		p, err := Decode(doc)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("[%d]: duplicate profile id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		ps.Items = append(ps.Items, p)
	}
	return ps, nil
}

// rejectFractional stops weak decoding from truncating 4.7 into 4.
func rejectFractional(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}

	if v := reflect.ValueOf(data).Float(); v != math.Trunc(v) {
		return nil, fmt.Errorf("%v is not a whole number", v)
	}
	return data, nil
}

// Validate reports the first missing or out-of-range attribute.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errNoID
	}

	for _, name := range Likerts {
		if err := checkRange(p.ID, LikertPrefix+name, p.Likert, name); err != nil {
			return err
		}
	}
	for _, name := range SemDiffs {
		if err := checkRange(p.ID, SemDiffPrefix+name, p.SemDiff, name); err != nil {
			return err
		}
	}

	return nil
}

func checkRange(id, column string, values map[string]int, name string) error {
	v, ok := values[name]
	if !ok {
		return fmt.Errorf("profile %s: missing %s", id, column)
	}
	if v < MinValue || v > MaxValue {
		return fmt.Errorf("profile %s: %s=%d is out of range [%d,%d]", id, column, v, MinValue, MaxValue)
	}
	return nil
}

// Vector returns the Likert answers followed by the semantic-differential
// answers, in the order of AttributeNames.
func (p *Profile) Vector() []float64 {
	v := make([]float64, 0, AttributeCount())
	for _, l := range Likerts {
		v = append(v, float64(p.Likert[l]))
	}
	for _, s := range SemDiffs {
		v = append(v, float64(p.SemDiff[s]))
	}
	return v
}

// Attribute returns the value of a column named as in AttributeNames.
func (p *Profile) Attribute(column string) (int, bool) {
	switch {
	case strings.HasPrefix(column, LikertPrefix):
		v, ok := p.Likert[strings.TrimPrefix(column, LikertPrefix)]
		return v, ok
	case strings.HasPrefix(column, SemDiffPrefix):
		v, ok := p.SemDiff[strings.TrimPrefix(column, SemDiffPrefix)]
		return v, ok
	default:
		return 0, false
	}
}

// SetAttribute sets a column named as in AttributeNames.
func (p *Profile) SetAttribute(column string, value int) bool {
	switch {
	case strings.HasPrefix(column, LikertPrefix):
		if p.Likert == nil {
			p.Likert = make(map[string]int, len(Likerts))
		}
		p.Likert[strings.TrimPrefix(column, LikertPrefix)] = value
	case strings.HasPrefix(column, SemDiffPrefix):
		if p.SemDiff == nil {
			p.SemDiff = make(map[string]int, len(SemDiffs))
		}
		p.SemDiff[strings.TrimPrefix(column, SemDiffPrefix)] = value
	default:
		return false
	}
	return true
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.NameFirst + " " + p.NameLast)
}

type Profiles struct {
	Items []*Profile
}

func (ps *Profiles) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.Items)
}

func (ps *Profiles) FindByID(id string) *Profile {
	for _, p := range ps.Items {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (ps *Profiles) IDs() []string {
	ids := make([]string, 0, len(ps.Items))
	for _, p := range ps.Items {
		ids = append(ids, p.ID)
	}
	return ids
}

// Index maps ids to profiles.
func (ps *Profiles) Index() map[string]*Profile {
	idx := make(map[string]*Profile, len(ps.Items))
	for _, p := range ps.Items {
		idx[p.ID] = p
	}
	return idx
}

// Exclude removes profiles whose id is in ids and returns the removed ids.
// Order of the remaining profiles is preserved.
func (ps *Profiles) Exclude(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	return ps.Retain(func(p *Profile) bool {
		_, ok := drop[p.ID]
		return !ok
	})
}

// Retain keeps the profiles for which keep returns true and returns the ids
// of the removed ones.
func (ps *Profiles) Retain(keep func(*Profile) bool) []string {
	var removed []string
	kept := ps.Items[:0]
	for _, p := range ps.Items {
		if keep(p) {
			kept = append(kept, p)
			continue
		}
		removed = append(removed, p.ID)
	}
	ps.Items = kept
	return removed
}

// Clone returns a shallow copy whose Items slice can be filtered independently.
func (ps *Profiles) Clone() *Profiles {
	items := make([]*Profile, len(ps.Items))
	copy(items, ps.Items)
	return &Profiles{Items: items}
}
