package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/camomilehq/roombot/pkg/logging"
)

// ErrSessionNotFound indicates no session exists for the requested key.
var ErrSessionNotFound = errors.New("session: not found")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Record is one user's persisted conversation session. The context blob
// is kept as the raw JSON string so the NLU state round-trips exactly.
type Record struct {
	UserKey   string `dynamodbav:"userKey" json:"userKey"`
	UserID    string `dynamodbav:"userId,omitempty" json:"userId,omitempty"`
	Context   string `dynamodbav:"context,omitempty" json:"context,omitempty"`
	Channel   string `dynamodbav:"channel" json:"channel"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Store persists session records to DynamoDB, keyed by the channel user
// key with a secondary index on the NLU user id for reminder lookups.
type Store struct {
	client    dynamoAPI
	tableName string
	userIndex string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName, userIndex string, logger *logging.Logger) *Store {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: table name cannot be empty")
	}
	if userIndex == "" {
		userIndex = "userId-index"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		userIndex: userIndex,
		logger:    logger,
	}
}

// Get fetches a session by channel user key.
func (s *Store) Get(ctx context.Context, userKey string) (*Record, error) {
	if userKey == "" {
		return nil, errors.New("session: user key required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"userKey": &types.AttributeValueMemberS{Value: userKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session: failed to fetch %s: %w", userKey, err)
	}
	if out.Item == nil {
		return nil, ErrSessionNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("session: failed to decode %s: %w", userKey, err)
	}
	return &rec, nil
}

// Put upserts a session record. Two concurrent turns for the same user
// race last-write-wins, which is accepted at conversational pace.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("session: record cannot be nil")
	}
	if rec.UserKey == "" {
		return errors.New("session: user key required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if rec.CreatedAt == "" {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("session: failed to marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("session: failed to persist %s: %w", rec.UserKey, err)
	}
	return nil
}

// FindByUserID resolves a session through the user-id secondary index.
// The reminder job uses it to map a booking owner back to a chat.
func (s *Store) FindByUserID(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, errors.New("session: user id required")
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.userIndex),
		KeyConditionExpression: aws.String("userId = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("session: failed to query user %s: %w", userID, err)
	}
	if len(out.Items) == 0 {
		return nil, ErrSessionNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, fmt.Errorf("session: failed to decode user %s: %w", userID, err)
	}
	return &rec, nil
}
