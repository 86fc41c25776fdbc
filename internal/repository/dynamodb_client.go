package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const skPrefixPref = "PREF#"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps long-lived preferences for one profile in a DynamoDB
// table. Items are never expired.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	profileID string
	now       func() time.Time
}

// NewDynamoStore creates a store scoped to profileID.
func NewDynamoStore(api dynamodbAPI, tableName, profileID string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, errors.New("repository: profile id must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, profileID: profileID, now: time.Now}, nil
}

// profilePK returns the partition key for a profile.
func profilePK(profileID string) string {
	return "PROFILE#" + profileID
}

// prefSK returns the sort key for a preference key.
func prefSK(key string) string {
	return skPrefixPref + key
}

func (s *DynamoStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: profilePK(s.profileID)},
		"SK": &types.AttributeValueMemberS{Value: prefSK(key)},
	}
}

// Get returns the stored value for key. A missing item is not an error.
func (s *DynamoStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: Get %q: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	v, err := strAttr(out.Item, "value")
	if err != nil {
		return "", false, fmt.Errorf("repository: Get %q decode value: %w", key, err)
	}
	return v, true, nil
}

// Set writes or replaces the value for key.
func (s *DynamoStore) Set(ctx context.Context, key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	item := s.itemKey(key)
	item["profileId"] = &types.AttributeValueMemberS{Value: s.profileID}
	item["value"] = &types.AttributeValueMemberS{Value: value}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete %q: %w", key, err)
	}
	return nil
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("repository: key must not be empty")
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
