package config

import "time"

type Config struct {
	GracefulDuration time.Duration
	DefaultTimeout   time.Duration
	Metrics          Metrics
	Logs             Logs
	Kafka            Kafka
	Valkey           Valkey
	DeadLetterQueue  S3
	Edge             Edge
	Queue            Queue
	Consent          Consent
	Hub              Hub
}

type Metrics struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

// Edge configures the ingestion endpoint and the configuration snapshot
// applied to enqueued entities.
type Edge struct {
	Domain         string
	ConfigID       string
	RequestTimeout time.Duration
}

// Queue configures backoff between attempts on a failing head entity.
type Queue struct {
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Consent seeds the collect consent decision for deployments without a live
// consent module. Empty means: leave it to the bootstrap logic.
type Consent struct {
	Default string
}

// Hub describes the host SDK hub as deployment configuration.
type Hub struct {
	SDKVersion        string
	WrapperType       string
	ConsentRegistered bool
	BootRetryInterval time.Duration
}

type S3 struct {
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Broker   KafkaBroker
	Consumer KafkaConsumer
}

type KafkaBroker struct {
	URLs    string
	Version string
	Creds   KafkaCreds
}

type KafkaCreds struct{}

func (c KafkaCreds) String() string {
	return ""
}

type KafkaConsumer struct {
	Topic string
	Group string
}

type Valkey struct {
	URL   string
	Creds ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}
