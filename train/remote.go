package train

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"nano-peft-go/nanopeft"
)

// RemoteBackend implements TrainingBackend against a PEFT fine-tuning
// HTTP service. The service owns the GPU side; this client submits the
// rendered training examples, polls for step progress, and downloads
// the adapter artifacts when asked to save.
type RemoteBackend struct {
	serverURL string
	client    *http.Client
	config    *nanopeft.Config
	lora      *nanopeft.LoraConfig
	jobID     string
	pollEvery time.Duration
}

// NewRemoteBackend connects to a fine-tuning service
func NewRemoteBackend(serverURL string, config *nanopeft.Config, lora *nanopeft.LoraConfig) (*RemoteBackend, error) {
	backend := &RemoteBackend{
		serverURL: serverURL,
		client:    &http.Client{},
		config:    config,
		lora:      lora,
		pollEvery: time.Second,
	}

	resp, err := backend.client.Get(serverURL + "/info")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to training service: %w", err)
	}
	defer resp.Body.Close()

	var info struct {
		ModelName string `json:"model_name"`
		PeftType  string `json:"peft_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode service info: %w", err)
	}

	fmt.Printf("✓ Connected to training service (model: %s)\n", info.ModelName)

	return backend, nil
}

// Train submits a fine-tuning job and polls it to completion
func (b *RemoteBackend) Train(trainSet, evalSet *nanopeft.Dataset, format nanopeft.FormatFunc, onStep func(nanopeft.StepInfo)) (*nanopeft.TrainReport, error) {
	type Request struct {
		TrainExamples        []string `json:"train_examples"`
		EvalExamples         []string `json:"eval_examples"`
		NumTrainEpochs       int      `json:"num_train_epochs"`
		TrainBatchSize       int      `json:"train_batch_size"`
		GradientAccumulation int      `json:"gradient_accumulation_steps"`
		LearningRate         float64  `json:"learning_rate"`
		PeftType             string   `json:"peft_type"`
		LoraR                int      `json:"lora_r"`
		LoraAlpha            int      `json:"lora_alpha"`
		LoraDropout          float64  `json:"lora_dropout"`
		ModulesToSave        []string `json:"modules_to_save"`
	}

	req := Request{
		TrainExamples:        renderAll(trainSet, format),
		EvalExamples:         renderAll(evalSet, format),
		NumTrainEpochs:       b.config.NumTrainEpochs,
		TrainBatchSize:       b.config.PerDeviceTrainBatchSize,
		GradientAccumulation: b.config.GradientAccumulation,
		LearningRate:         b.config.LearningRate,
		PeftType:             "LORA",
		LoraR:                b.lora.Rank,
		LoraAlpha:            b.lora.Alpha,
		LoraDropout:          b.lora.Dropout,
		ModulesToSave:        b.lora.ModulesToSave,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Post(b.serverURL+"/finetune", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to submit fine-tuning job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("training service rejected job: %s", msg)
	}

	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return nil, fmt.Errorf("failed to decode job submission: %w", err)
	}
	b.jobID = submitted.JobID

	return b.poll(onStep)
}

// poll watches the job until it completes or fails, forwarding step
// progress as it advances
func (b *RemoteBackend) poll(onStep func(nanopeft.StepInfo)) (*nanopeft.TrainReport, error) {
	lastStep := 0

	for {
		resp, err := b.client.Get(b.serverURL + "/finetune/" + b.jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll job status: %w", err)
		}

		var status struct {
			Status     string    `json:"status"`
			Step       int       `json:"step"`
			TotalSteps int       `json:"total_steps"`
			Loss       float64   `json:"loss"`
			EvalLosses []float64 `json:"eval_losses"`
			Error      string    `json:"error"`
		}

		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode job status: %w", err)
		}

		if onStep != nil {
			for step := lastStep + 1; step <= status.Step; step++ {
				onStep(nanopeft.StepInfo{Step: step, TotalSteps: status.TotalSteps, Loss: status.Loss})
			}
		}
		lastStep = status.Step

		switch status.Status {
		case "completed":
			return &nanopeft.TrainReport{
				Steps:          status.Step,
				FinalTrainLoss: status.Loss,
				EvalLosses:     status.EvalLosses,
			}, nil
		case "failed":
			// service errors arrive as plain text; keep the message
			// intact so mismatch markers stay detectable
			return nil, fmt.Errorf("fine-tuning job failed: %s", status.Error)
		}

		time.Sleep(b.pollEvery)
	}
}

// SaveAdapter downloads the trained adapter artifacts into dir
func (b *RemoteBackend) SaveAdapter(dir string) error {
	if b.jobID == "" {
		return fmt.Errorf("no completed fine-tuning job to save")
	}

	resp, err := b.client.Get(b.serverURL + "/finetune/" + b.jobID + "/adapter")
	if err != nil {
		return fmt.Errorf("failed to fetch adapter: %w", err)
	}
	defer resp.Body.Close()

	var artifact struct {
		AdapterConfig json.RawMessage `json:"adapter_config"`
		AdapterModel  string          `json:"adapter_model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return fmt.Errorf("failed to decode adapter artifact: %w", err)
	}

	weights, err := base64.StdEncoding.DecodeString(artifact.AdapterModel)
	if err != nil {
		return fmt.Errorf("failed to decode adapter weights: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "adapter_config.json"), artifact.AdapterConfig, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "adapter_model.safetensors"), weights, 0o644)
}

// renderAll formats every record of a partition
func renderAll(ds *nanopeft.Dataset, format nanopeft.FormatFunc) []string {
	out := make([]string, 0, ds.Len())
	for _, record := range ds.Records {
		out = append(out, format(record))
	}
	return out
}
