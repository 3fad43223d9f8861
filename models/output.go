package models

// OutputRecord is one finalized time bucket ready for the day router. Key
// is YYYYMMDD_HHMMSS and Value holds the comma separated factor means.
// The byte slices are only valid until the producer's next record.
type OutputRecord struct {
	Key   []byte
	Value []byte
	Means Vector
}
