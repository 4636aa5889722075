package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// Client represents a MongoDB database client
type Client struct {
	client *mongo.Client
	config *Config
	logger *slog.Logger
}

// NewClient creates a new MongoDB client and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	serverSelectionTimeout := config.ServerSelectionTimeout
	if serverSelectionTimeout <= 0 {
		serverSelectionTimeout = 5 * time.Second
	}

	logger.Info("Connecting to MongoDB",
		slog.String("database", config.Database),
		slog.Duration("server_selection_timeout", serverSelectionTimeout),
	)

	opts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("Failed to connect to MongoDB",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection
	pingCtx, pingCancel := context.WithTimeout(context.Background(), serverSelectionTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Error("Failed to ping MongoDB",
			slog.Any("error", err),
		)
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB")

	return &Client{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Database returns the configured database handle
func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.config.Database)
}

// Ping checks the MongoDB connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// HealthCheck performs a bounded liveness probe
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("Closing MongoDB connection")

	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to close MongoDB connection",
			slog.Any("error", err),
		)
		return err
	}

	c.logger.Info("MongoDB connection closed successfully")
	return nil
}
