package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/features"
	"github.com/spigell/matchmaker/internal/generator"
	"github.com/spigell/matchmaker/internal/model"
	"github.com/spigell/matchmaker/internal/profile"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the compatibility model on generated profiles and scores",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, map[string]string{
			"kernel":    "train.kernel",
			"gamma":     "train.gamma",
			"alpha":     "train.alpha",
			"landmarks": "train.landmarks",
			"seed":      "train.seed",
			"model":     "train.model",
		})
	},
	Run: func(_ *cobra.Command, _ []string) {
		train()
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("kernel", model.KindRBF, "regressor kind: rbf or linear")
	trainCmd.Flags().Float64("gamma", 0, "RBF kernel width; 0 derives it from the data")
	trainCmd.Flags().Float64("alpha", model.DefaultAlpha, "ridge penalty per training sample")
	trainCmd.Flags().Int("landmarks", model.DefaultLandmarks, "maximum number of kernel centres")
	trainCmd.Flags().Uint64("seed", 1, "seed for picking kernel centres")
	trainCmd.Flags().String("model", "", "model artifact path (default <data-dir>/model.json)")
}

func train() {
	logger, config := setup("train")

	employersPath, employeesPath, reviewsPath := generator.Paths(config.DataDir)

	employers, err := profile.LoadFile(employersPath)
	if err != nil {
		logger.Fatal("loading employers", zap.Error(err))
	}
	employees, err := profile.LoadFile(employeesPath)
	if err != nil {
		logger.Fatal("loading employees", zap.Error(err))
	}
	pairs, err := profile.LoadPairsFile(reviewsPath)
	if err != nil {
		logger.Fatal("loading reviews", zap.Error(err))
	}

	set, err := features.TrainingSet(employers, employees, pairs)
	if err != nil {
		logger.Fatal("building training set", zap.Error(err))
	}
	if set.Skipped > 0 {
		logger.Warn("reviews reference unknown profiles", zap.Int("skipped", set.Skipped))
	}

	regressor, err := model.New(model.Options{
		Kind:      config.Train.Kernel,
		Gamma:     config.Train.Gamma,
		Alpha:     config.Train.Alpha,
		Landmarks: config.Train.Landmarks,
		Seed:      config.Train.Seed,
	})
	if err != nil {
		logger.Fatal("creating a model", zap.Error(err))
	}

	samples := len(set.Y)
	logger.Info("training", zap.String("kernel", regressor.Kind()), zap.Int("samples", samples))

	start := time.Now()
	if err := regressor.Fit(set.X, set.Y); err != nil {
		logger.Fatal("fitting the model", zap.Error(err))
	}
	logger.Info("model fitted", zap.Duration("took", time.Since(start)))

	predicted, err := regressor.Predict(set.X)
	if err != nil {
		logger.Fatal("predicting training scores", zap.Error(err))
	}

	metrics, err := model.Evaluate(set.Y, predicted)
	if err != nil {
		logger.Fatal("evaluating the model", zap.Error(err))
	}

	fmt.Printf("mean absolute error = %.6f\n"+
		"mean squared error = %.6f\n"+
		"explained variance score = %.6f\n"+
		"r^2 score = %.6f\n",
		metrics.MAE, metrics.MSE, metrics.ExplainedVariance, metrics.R2)

	artifact, err := model.NewArtifact(regressor, samples, metrics)
	if err != nil {
		logger.Fatal("packing the model", zap.Error(err))
	}

	path := config.modelPath()
	if err := model.Save(path, artifact); err != nil {
		logger.Fatal("saving the model", zap.Error(err))
	}

	logger.Info("model saved", zap.String("path", path))
}
