package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore implements DocumentStore on a single DynamoDB table with
// "collection" as the partition key and "id" as the sort key. Filters
// are evaluated client-side after querying the collection partition,
// which is acceptable at this system's per-user collection sizes.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

type dynamoDocument struct {
	Collection string `dynamodbav:"collection"`
	ID         string `dynamodbav:"id"`
	Doc        string `dynamodbav:"doc"`
}

func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (ds *DynamoStore) Insert(ctx context.Context, collection, id string, doc any) error {
	av, err := ds.marshalItem(collection, id, doc)
	if err != nil {
		return err
	}

	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ds.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (ds *DynamoStore) Update(ctx context.Context, collection, id string, doc any) error {
	av, err := ds.marshalItem(collection, id, doc)
	if err != nil {
		return err
	}

	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ds.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (ds *DynamoStore) FindByID(ctx context.Context, collection, id string, out any) error {
	result, err := ds.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ds.tableName),
		Key:       ds.key(collection, id),
	})
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if result.Item == nil {
		return ErrNotFound
	}

	var item dynamoDocument
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return json.Unmarshal([]byte(item.Doc), out)
}

func (ds *DynamoStore) Find(ctx context.Context, collection string, filter Filter, out any) error {
	raws, err := ds.matching(ctx, collection, filter)
	if err != nil {
		return err
	}

	combined, err := json.Marshal(raws)
	if err != nil {
		return err
	}
	return json.Unmarshal(combined, out)
}

func (ds *DynamoStore) Delete(ctx context.Context, collection, id string) error {
	_, err := ds.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(ds.tableName),
		Key:                 ds.key(collection, id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (ds *DynamoStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	raws, err := ds.matching(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	return len(raws), nil
}

func (ds *DynamoStore) SumField(ctx context.Context, collection string, filter Filter, field string) (float64, error) {
	raws, err := ds.matching(ctx, collection, filter)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, raw := range raws {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return 0, err
		}
		sum += numericField(doc, field)
	}
	return sum, nil
}

// matching queries the collection partition and applies the filter
// client-side.
func (ds *DynamoStore) matching(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error) {
	raws := make([]json.RawMessage, 0)

	var lastKey map[string]types.AttributeValue
	for {
		result, err := ds.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(ds.tableName),
			KeyConditionExpression: aws.String("#c = :collection"),
			ExpressionAttributeNames: map[string]string{
				"#c": "collection",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":collection": &types.AttributeValueMemberS{Value: collection},
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query documents: %w", err)
		}

		for _, rawItem := range result.Items {
			var item dynamoDocument
			if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal document: %w", err)
			}
			var doc map[string]any
			if err := json.Unmarshal([]byte(item.Doc), &doc); err != nil {
				return nil, err
			}
			if matches(doc, filter) {
				raws = append(raws, json.RawMessage(item.Doc))
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastKey = result.LastEvaluatedKey
	}

	return raws, nil
}

func (ds *DynamoStore) key(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"collection": &types.AttributeValueMemberS{Value: collection},
		"id":         &types.AttributeValueMemberS{Value: id},
	}
}

func (ds *DynamoStore) marshalItem(collection, id string, doc any) (map[string]types.AttributeValue, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(dynamoDocument{
		Collection: collection,
		ID:         id,
		Doc:        string(raw),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return av, nil
}
