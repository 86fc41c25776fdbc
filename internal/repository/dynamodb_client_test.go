package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	deleteErr    error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastDelInput *dynamodb.DeleteItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func mustNewDynamoStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamoStore(db, "prefs-table", "device-1")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return s
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, err := strAttr(item, key)
	require.NoError(t, err)
	return v
}

func TestNewDynamoStore_Validates(t *testing.T) {
	_, err := NewDynamoStore(nil, "t", "p")
	require.ErrorContains(t, err, "api must not be nil")

	_, err = NewDynamoStore(&fakeDynamo{}, " ", "p")
	require.ErrorContains(t, err, "table name")

	_, err = NewDynamoStore(&fakeDynamo{}, "t", "")
	require.ErrorContains(t, err, "profile id")
}

func TestDynamoStore_GetHappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: "PROFILE#device-1"},
		"SK":    &types.AttributeValueMemberS{Value: "PREF#kakapo_user_name"},
		"value": &types.AttributeValueMemberS{Value: "Alex"},
	}}}
	s := mustNewDynamoStore(t, db)

	v, ok, err := s.Get(context.Background(), "kakapo_user_name")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Alex", v)

	require.Equal(t, "prefs-table", *db.lastGetInput.TableName)
	require.True(t, *db.lastGetInput.ConsistentRead)
	require.Equal(t, "PROFILE#device-1", sAttr(t, db.lastGetInput.Key, "PK"))
	require.Equal(t, "PREF#kakapo_user_name", sAttr(t, db.lastGetInput.Key, "SK"))
}

func TestDynamoStore_GetMissingItem(t *testing.T) {
	s := mustNewDynamoStore(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	v, ok, err := s.Get(context.Background(), "kakapo_user_name")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, v)
}

func TestDynamoStore_GetError(t *testing.T) {
	s := mustNewDynamoStore(t, &fakeDynamo{getErr: errors.New("boom")})
	_, _, err := s.Get(context.Background(), "kakapo_user_name")
	require.ErrorContains(t, err, "boom")
}

func TestDynamoStore_GetMalformedValue(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"value": &types.AttributeValueMemberN{Value: "1"},
	}}}
	s := mustNewDynamoStore(t, db)
	_, _, err := s.Get(context.Background(), "kakapo_dark_mode")
	require.ErrorContains(t, err, "decode value")
}

func TestDynamoStore_Set(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewDynamoStore(t, db)

	require.NoError(t, s.Set(context.Background(), "kakapo_dark_mode", "true"))
	item := db.lastPutInput.Item
	require.Equal(t, "PROFILE#device-1", sAttr(t, item, "PK"))
	require.Equal(t, "PREF#kakapo_dark_mode", sAttr(t, item, "SK"))
	require.Equal(t, "true", sAttr(t, item, "value"))
	require.Equal(t, "device-1", sAttr(t, item, "profileId"))
	require.Equal(t, "2026-10-18T09:00:00Z", sAttr(t, item, "updatedAt"))
	_, hasTTL := item["ttl"]
	require.False(t, hasTTL)
}

func TestDynamoStore_SetError(t *testing.T) {
	s := mustNewDynamoStore(t, &fakeDynamo{putErr: errors.New("throttled")})
	err := s.Set(context.Background(), "kakapo_dark_mode", "true")
	require.ErrorContains(t, err, "throttled")
}

func TestDynamoStore_Delete(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewDynamoStore(t, db)
	require.NoError(t, s.Delete(context.Background(), "kakapo_user_name"))
	require.Equal(t, "PREF#kakapo_user_name", sAttr(t, db.lastDelInput.Key, "SK"))
}

func TestDynamoStore_EmptyKey(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewDynamoStore(t, db)
	_, _, err := s.Get(context.Background(), "")
	require.Error(t, err)
	require.Error(t, s.Set(context.Background(), " ", "x"))
	require.Error(t, s.Delete(context.Background(), ""))
	require.Nil(t, db.lastGetInput)
	require.Nil(t, db.lastPutInput)
	require.Nil(t, db.lastDelInput)
}
