package profile

// maxDistance is the largest squared Euclidean distance two valid profiles
// can have: every attribute differs by MaxValue-MinValue.
var maxDistance = float64((MaxValue-MinValue)*(MaxValue-MinValue)) * float64(AttributeCount())

// Pair is a ground-truth employer/employee compatibility record.
type Pair struct {
	EmployerID string  `json:"employerID"`
	EmployeeID string  `json:"employeeID"`
	Score      float64 `json:"score"`
}

// Score returns the compatibility of two profiles in [0,1]: 1 for identical
// answers, 0 for answers that are as far apart as possible.
func Score(employer, employee *Profile) float64 {
	a, b := employer.Vector(), employee.Vector()

	var dist float64
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}

	return (maxDistance - dist) / maxDistance
}

// NewPair scores employer against employee.
func NewPair(employer, employee *Profile) Pair {
	return Pair{
		EmployerID: employer.ID,
		EmployeeID: employee.ID,
		Score:      Score(employer, employee),
	}
}
