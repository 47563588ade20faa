package nanopeft

import (
	"testing"
)

func TestDatasetSplitSizes(t *testing.T) {
	config := NewConfig(t.TempDir())
	train, eval := BuildTrainingDataset(config)

	if len(FAQData) != 17 {
		t.Fatalf("Expected 17 FAQ records, got %d", len(FAQData))
	}
	if train.Len() != 13 {
		t.Errorf("Expected 13 training examples, got %d", train.Len())
	}
	if eval.Len() != 4 {
		t.Errorf("Expected 4 evaluation examples, got %d", eval.Len())
	}
}

func TestDatasetSplitDisjointAndCovering(t *testing.T) {
	config := NewConfig(t.TempDir())
	train, eval := BuildTrainingDataset(config)

	seen := make(map[string]int)
	for _, r := range train.Records {
		seen[r.Instruction]++
	}
	for _, r := range eval.Records {
		seen[r.Instruction]++
	}

	if len(seen) != len(FAQData) {
		t.Errorf("Expected %d distinct records across partitions, got %d", len(FAQData), len(seen))
	}
	for instruction, count := range seen {
		if count != 1 {
			t.Errorf("Record appears %d times across partitions: %s", count, instruction)
		}
	}
}

func TestDatasetSplitDeterministic(t *testing.T) {
	config := NewConfig(t.TempDir())

	train1, eval1 := BuildTrainingDataset(config)
	train2, eval2 := BuildTrainingDataset(config)

	for i := range train1.Records {
		if train1.Records[i] != train2.Records[i] {
			t.Fatalf("Training partition differs at index %d between identical runs", i)
		}
	}
	for i := range eval1.Records {
		if eval1.Records[i] != eval2.Records[i] {
			t.Fatalf("Evaluation partition differs at index %d between identical runs", i)
		}
	}
}

func TestShuffleSeedChangesOrder(t *testing.T) {
	a := NewDataset(FAQData)
	b := NewDataset(FAQData)
	a.Shuffle(42)
	b.Shuffle(7)

	same := true
	for i := range a.Records {
		if a.Records[i] != b.Records[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("Different seeds produced identical orders")
	}
}

func TestNewDatasetCopies(t *testing.T) {
	records := []FAQRecord{
		{Instruction: "a", Response: "1"},
		{Instruction: "b", Response: "2"},
	}
	ds := NewDataset(records)
	ds.Records[0].Instruction = "changed"

	if records[0].Instruction != "a" {
		t.Errorf("Dataset mutation leaked into the source slice")
	}
}

func TestSplitEmptyEval(t *testing.T) {
	ds := NewDataset([]FAQRecord{{Instruction: "a"}, {Instruction: "b"}})
	train, eval := ds.Split(1.0)

	if train.Len() != 2 {
		t.Errorf("Expected 2 training records, got %d", train.Len())
	}
	if eval.Len() != 0 {
		t.Errorf("Expected empty eval partition, got %d records", eval.Len())
	}
}
