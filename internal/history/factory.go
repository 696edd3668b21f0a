package history

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
)

type DriverType string

const (
	DriverDynamoDB DriverType = "dynamodb"
	DriverMySQL    DriverType = "mysql"
	DriverSQLite   DriverType = "sqlite"
	DriverRedis    DriverType = "redis"
	DriverMemory   DriverType = "memory"
)

var (
	ErrInvalidConfig     = errors.New("history: invalid configuration")
	ErrInvalidDriverType = errors.New("history: invalid driver type")
)

// Option configures NewDriver.
type Option func(*driverConfig)

type driverConfig struct {
	awsConfig   *aws.Config
	dynamo      DynamoAPI
	tableName   string
	dsn         string
	redisClient *redis.Client
}

// WithAWSConfig lets the dynamodb driver build its own client.
func WithAWSConfig(cfg aws.Config) Option {
	return func(c *driverConfig) { c.awsConfig = &cfg }
}

// WithDynamoClient supplies a ready client; it wins over WithAWSConfig.
func WithDynamoClient(client DynamoAPI) Option {
	return func(c *driverConfig) { c.dynamo = client }
}

func WithTableName(name string) Option {
	return func(c *driverConfig) { c.tableName = name }
}

func WithDSN(dsn string) Option {
	return func(c *driverConfig) { c.dsn = dsn }
}

func WithRedisClient(client *redis.Client) Option {
	return func(c *driverConfig) { c.redisClient = client }
}

// NewDriver builds the driver named by t.
func NewDriver(t DriverType, opts ...Option) (Driver, error) {
	cfg := &driverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch t {
	case DriverDynamoDB:
		if cfg.tableName == "" {
			return nil, fmt.Errorf("%w: dynamodb table name required", ErrInvalidConfig)
		}
		client := cfg.dynamo
		if client == nil {
			if cfg.awsConfig == nil {
				return nil, fmt.Errorf("%w: dynamodb needs an aws config or client", ErrInvalidConfig)
			}
			client = dynamodb.NewFromConfig(*cfg.awsConfig)
		}
		return NewDynamoDriver(client, cfg.tableName), nil

	case DriverMySQL, DriverSQLite:
		if cfg.dsn == "" {
			return nil, fmt.Errorf("%w: %s dsn required", ErrInvalidConfig, t)
		}
		db, err := OpenSQL(string(t), cfg.dsn)
		if err != nil {
			return nil, fmt.Errorf("history: open %s: %w", t, err)
		}
		return NewSQLDriver(db), nil

	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis client required", ErrInvalidConfig)
		}
		return NewRedisDriver(cfg.redisClient), nil

	case DriverMemory:
		return NewMemoryDriver(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriverType, t)
	}
}
