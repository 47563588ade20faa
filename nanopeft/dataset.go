package nanopeft

import (
	"math/rand"
)

// FAQRecord is a single instruction/response training pair
type FAQRecord struct {
	Instruction string
	Response    string
}

// Dataset is an ordered sequence of FAQ records
type Dataset struct {
	Records []FAQRecord
}

// NewDataset creates a dataset from a copy of the given records
func NewDataset(records []FAQRecord) *Dataset {
	copied := make([]FAQRecord, len(records))
	copy(copied, records)
	return &Dataset{Records: copied}
}

// Len returns the number of records in the dataset
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Shuffle reorders the records in place with a deterministic seed.
// The same seed always produces the same order.
func (d *Dataset) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(d.Records), func(i, j int) {
		d.Records[i], d.Records[j] = d.Records[j], d.Records[i]
	})
}

// Split cuts the dataset at floor(fraction * len) into train and eval
// partitions. Every record lands in exactly one partition.
func (d *Dataset) Split(fraction float64) (train, eval *Dataset) {
	cut := int(float64(len(d.Records)) * fraction)
	return NewDataset(d.Records[:cut]), NewDataset(d.Records[cut:])
}

// BuildTrainingDataset shuffles the literal FAQ table with the configured
// seed and splits it into train/eval partitions
func BuildTrainingDataset(config *Config) (train, eval *Dataset) {
	ds := NewDataset(FAQData)
	ds.Shuffle(config.ShuffleSeed)
	return ds.Split(config.TrainFraction)
}
