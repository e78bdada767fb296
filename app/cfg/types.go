package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir          string
	Port                string
	WorkerCount         int
	SchedulerInterval   int
	SimilarityThreshold float64
	RecencyWindowSize   int
	ExtractionBatchSize int
	APIAccessKey        string

	// Headline API configuration
	HeadlineAPIKey     string
	HeadlineAPIBaseURL string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
