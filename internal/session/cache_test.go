package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camomilehq/roombot/pkg/logging"
)

func newCachedStore(t *testing.T, mock *mockDynamo) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := NewStore(mock, "roombot_sessions", "userId-index", logging.Default())
	return NewCachedStore(store, rdb, time.Hour, logging.Default()), mr
}

func TestCachedGetFallsThroughAndFills(t *testing.T) {
	mock := &mockDynamo{
		getOutput: &dynamodb.GetItemOutput{
			Item: mustItem(t, Record{UserKey: "12345", UserID: "U1", Channel: "telegram"}),
		},
	}
	cached, mr := newCachedStore(t, mock)

	rec, err := cached.Get(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "U1", rec.UserID)

	assert.True(t, mr.Exists("session:12345"), "miss must fill the cache")
}

func TestCachedGetServesFromCache(t *testing.T) {
	mock := &mockDynamo{
		getOutput: &dynamodb.GetItemOutput{
			Item: mustItem(t, Record{UserKey: "12345", UserID: "U1", Channel: "telegram"}),
		},
	}
	cached, _ := newCachedStore(t, mock)

	_, err := cached.Get(context.Background(), "12345")
	require.NoError(t, err)
	mock.getInput = nil

	rec, err := cached.Get(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "U1", rec.UserID)
	assert.Nil(t, mock.getInput, "second read must not hit DynamoDB")
}

func TestCachedPutWritesThroughAndRefreshes(t *testing.T) {
	mock := &mockDynamo{}
	cached, mr := newCachedStore(t, mock)

	rec := &Record{UserKey: "12345", Context: `{"timezone":"Asia/Seoul"}`, Channel: "telegram"}
	require.NoError(t, cached.Put(context.Background(), rec))

	assert.NotNil(t, mock.putInput, "write must reach DynamoDB")
	assert.True(t, mr.Exists("session:12345"))
}

func TestCachedGetSurvivesRedisOutage(t *testing.T) {
	mock := &mockDynamo{
		getOutput: &dynamodb.GetItemOutput{
			Item: mustItem(t, Record{UserKey: "12345", Channel: "telegram"}),
		},
	}
	cached, mr := newCachedStore(t, mock)
	mr.Close()

	rec, err := cached.Get(context.Background(), "12345")
	require.NoError(t, err, "cache outage must fall through to DynamoDB")
	assert.Equal(t, "12345", rec.UserKey)
}

func TestNilRedisDisablesCaching(t *testing.T) {
	mock := &mockDynamo{
		getOutput: &dynamodb.GetItemOutput{
			Item: mustItem(t, Record{UserKey: "12345", Channel: "telegram"}),
		},
	}
	store := NewStore(mock, "roombot_sessions", "userId-index", logging.Default())
	cached := NewCachedStore(store, nil, 0, logging.Default())

	rec, err := cached.Get(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", rec.UserKey)
}
