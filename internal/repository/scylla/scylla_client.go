// Package scylla stores chat history in ScyllaDB.
package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"social-service/internal/config"
	"social-service/internal/util"
)

// schema is applied at startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages_by_conversation (
		conversation_id text,
		created_at timestamp,
		message_id text,
		sender_id text,
		body text,
		attachments list<text>,
		PRIMARY KEY (conversation_id, created_at, message_id)
	) WITH CLUSTERING ORDER BY (created_at ASC, message_id ASC)`,
	`CREATE TABLE IF NOT EXISTS messages_by_sender (
		sender_id text,
		created_at timestamp,
		message_id text,
		conversation_id text,
		PRIMARY KEY (sender_id, created_at, message_id)
	)`,
}

// Statements are passed to Session.Query per call; gocql prepares and
// caches them by text, so the shared values stay immutable.
const (
	stmtInsertMessage = `INSERT INTO messages_by_conversation
		(conversation_id, created_at, message_id, sender_id, body, attachments) VALUES (?, ?, ?, ?, ?, ?)`
	stmtInsertMessageBySender = `INSERT INTO messages_by_sender
		(sender_id, created_at, message_id, conversation_id) VALUES (?, ?, ?, ?)`
	stmtListByConversation = `SELECT message_id, sender_id, body, attachments, created_at
		FROM messages_by_conversation WHERE conversation_id = ?`
	stmtGetMessage = `SELECT body, attachments FROM messages_by_conversation
		WHERE conversation_id = ? AND created_at = ? AND message_id = ?`
	stmtListBySender = `SELECT message_id, conversation_id, created_at
		FROM messages_by_sender WHERE sender_id = ?`
	stmtDeleteMessage = `DELETE FROM messages_by_conversation
		WHERE conversation_id = ? AND created_at = ? AND message_id = ?`
	stmtDeleteBySender = `DELETE FROM messages_by_sender WHERE sender_id = ?`
)

type ScyllaClient struct {
	Session *gocql.Session
}

func NewScyllaClient(cfg config.ScyllaConfig) (*ScyllaClient, error) {
	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if cfg.TLSCAFile != "" {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cfg.TLSCAFile,
			EnableHostVerification: true,
		}
	}
	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{Session: session}
	if err := client.migrate(); err != nil {
		session.Close()
		return nil, err
	}

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", cfg.Nodes),
		zap.String("keyspace", cfg.Keyspace))

	return client, nil
}

func (s *ScyllaClient) migrate() error {
	for _, stmt := range schema {
		if err := s.Session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("failed to apply scylla schema: %w", err)
		}
	}
	return nil
}

func (s *ScyllaClient) Query(stmt string, values ...any) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

// ExecuteWithRetry runs query up to maxRetries+1 times with a linear backoff.
func (s *ScyllaClient) ExecuteWithRetry(ctx context.Context, query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if lastErr = query.WithContext(ctx).Exec(); lastErr == nil {
			return nil
		}
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
			}
		}
	}
	return lastErr
}
