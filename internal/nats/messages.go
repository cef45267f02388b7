package nats

const (
	// DefaultMasterSubject is where the master listens for requests.
	DefaultMasterSubject = "jobclient.master"
	// MasterQueueGroup spreads requests across master replicas.
	MasterQueueGroup = "jobmaster"

	CorrelationHeader = "Job-Client-Correlation-Id"

	// Set by the server on the reply subject when nobody listens on the
	// request subject.
	statusHeader     = "Status"
	noRespondersCode = "503"

	transportName = "nats"
)
