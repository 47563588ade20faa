package main

import (
	"log"
	"os"

	"nano-peft-go/model"
	"nano-peft-go/nanopeft"
	"nano-peft-go/train"
)

// Streamlined fine-tuning check: three training records, minimal
// epochs, rank-8 adapter. Run this before the full validation when
// iterating on setup.
func main() {
	modelDir := "./models/qwen2-0.5b"
	if len(os.Args) > 1 {
		modelDir = os.Args[1]
	}

	os.Setenv("HF_HUB_ENABLE_HF_TRANSFER", "1")

	p := nanopeft.NewConsolePrinter()
	device := nanopeft.SelectDeviceFromEnv()

	p.Println("🚀 Quick Fine-tuning Validation Test")
	p.Rule("=", 50)
	p.Printf("📱 Using device: %s\n", device)

	p.Println("📥 Loading model...")
	var tok nanopeft.Tokenizer
	if hf, err := model.NewHFTokenizer(modelDir); err == nil {
		defer hf.Close()
		tok = hf
	} else {
		js, jsErr := model.NewJSONTokenizer(modelDir)
		if jsErr != nil {
			log.Fatalf("Failed to load tokenizer: %v", jsErr)
		}
		tok = js
	}

	runner, err := model.NewNativeRunner(modelDir)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer runner.Close()

	config := nanopeft.NewConfig(modelDir,
		nanopeft.WithOutputDir("./quick_test_output"),
		nanopeft.WithNumTrainEpochs(3),
		nanopeft.WithTrainBatchSize(2),
		nanopeft.WithGradientAccumulation(1),
		nanopeft.WithLoggingSteps(1),
		nanopeft.WithSaveSteps(1),
		nanopeft.WithEvalEveryEpoch(false),
	)
	lora := nanopeft.NewLoraConfig(
		nanopeft.WithRank(8),
		nanopeft.WithAlpha(16),
	)

	backend, err := train.NewSFTBackend(runner.Model(), tok, config, lora)
	if err != nil {
		log.Fatalf("Failed to initialize training backend: %v", err)
	}

	format := func(record nanopeft.FAQRecord) string {
		return nanopeft.FormatExample(record, tok.EOSToken())
	}
	trainer := nanopeft.NewTrainer(config, backend, format, p)

	trainSet := nanopeft.NewDataset(nanopeft.QuickTestData)
	evalSet := nanopeft.NewDataset(nil)

	p.Printf("🎓 Training for %d epochs...\n", config.NumTrainEpochs)
	if _, err := trainer.Train(trainSet, evalSet); err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	savedPath, err := trainer.SaveModel("quick-adapter")
	if err != nil {
		log.Fatalf("Failed to save adapter: %v", err)
	}

	tuned, err := model.NewNativeRunnerWithAdapter(modelDir, savedPath)
	if err != nil {
		log.Fatalf("Failed to load fine-tuned model: %v", err)
	}
	defer tuned.Close()

	p.Println("")
	p.Println("🧪 Testing quick fine-tuned model:")
	engine := nanopeft.NewEngine(tuned, tok)
	params := nanopeft.NewGenerationParams(nanopeft.WithMaxNewTokens(50))

	for _, question := range nanopeft.QuickTestQuestions {
		out, err := engine.Generate(nanopeft.BuildQuickPrompt(question), params)
		if err != nil {
			log.Fatalf("Generation failed: %v", err)
		}
		p.Printf("Q: %s\n", question)
		p.Printf("A: %s\n", nanopeft.ExtractResponse(out.Text))
		p.Rule("-", 30)
	}

	p.Println("✅ Quick test completed!")
}
