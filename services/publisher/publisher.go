package publisher

// Publisher delivers scraped records to downstream consumers
type Publisher interface {
	// Publish delivers one encoded record. key is the record's source name.
	Publish(key string, message []byte) error

	// TrimStreams bounds the size of the published output
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
