package store

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outpost/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoTables names the tables and secondary indexes DynamoStore uses.
type DynamoTables struct {
	Runs       string
	Leads      string
	RunsIndex  string // partition key entityType, sort key createdAt
	LeadsIndex string // partition key runId
}

// DynamoStore implements Store on DynamoDB. Tables are provisioned outside
// this process; Migrate is a no-op.
type DynamoStore struct {
	client DynamoAPI
	tables DynamoTables
}

// NewDynamo creates a DynamoDB-backed store.
func NewDynamo(client DynamoAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{client: client, tables: tables}
}

func (s *DynamoStore) Migrate(context.Context) error { return nil }

func (s *DynamoStore) Close() error { return nil }

func (s *DynamoStore) CreateRun(ctx context.Context, run *model.Run) error {
	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return eris.Wrap(err, "dynamodb: marshal run")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Runs),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	return eris.Wrapf(err, "dynamodb: put run %s", run.ID)
}

// CompleteRun sets the terminal COMPLETED state. UpdateItem upserts, so a run
// created by another writer without this store is still updated.
func (s *DynamoStore) CompleteRun(ctx context.Context, runID string, leadsCount int, at time.Time) error {
	updatedAt, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return eris.Wrap(err, "dynamodb: marshal updatedAt")
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tables.Runs),
		Key:              runKey(runID),
		UpdateExpression: aws.String("SET #s = :s, leadsCount = :c, updatedAt = :u"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: string(model.RunStatusCompleted)},
			":c": &types.AttributeValueMemberN{Value: strconv.Itoa(leadsCount)},
			":u": updatedAt,
		},
	})
	return eris.Wrapf(err, "dynamodb: complete run %s", runID)
}

func (s *DynamoStore) FailRun(ctx context.Context, runID, errMsg string, at time.Time) error {
	updatedAt, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return eris.Wrap(err, "dynamodb: marshal updatedAt")
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tables.Runs),
		Key:              runKey(runID),
		UpdateExpression: aws.String("SET #s = :s, #e = :e, updatedAt = :u"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
			"#e": "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: string(model.RunStatusFailed)},
			":e": &types.AttributeValueMemberS{Value: errMsg},
			":u": updatedAt,
		},
	})
	return eris.Wrapf(err, "dynamodb: fail run %s", runID)
}

func (s *DynamoStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Runs),
		Key:       runKey(runID),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dynamodb: get run %s", runID)
	}
	if len(out.Item) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "dynamodb: run %s", runID)
	}
	var r model.Run
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, eris.Wrap(err, "dynamodb: unmarshal run")
	}
	return &r, nil
}

// ListRuns queries the runs index newest first. Offset is applied client-side.
func (s *DynamoStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Runs),
		IndexName:              aws.String(s.tables.RunsIndex),
		KeyConditionExpression: aws.String("entityType = :et"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":et": &types.AttributeValueMemberS{Value: model.EntityTypeRun},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if filter.Status != "" {
		in.FilterExpression = aws.String("#s = :s")
		in.ExpressionAttributeNames = map[string]string{"#s": "status"}
		in.ExpressionAttributeValues[":s"] = &types.AttributeValueMemberS{Value: string(filter.Status)}
	}

	want := filter.Offset + listLimit(filter)
	var runs []model.Run
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "dynamodb: query runs")
		}
		var page []model.Run
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, eris.Wrap(err, "dynamodb: unmarshal runs")
		}
		runs = append(runs, page...)
		if len(runs) >= want || len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if filter.Offset >= len(runs) {
		return nil, nil
	}
	runs = runs[filter.Offset:]
	if len(runs) > listLimit(filter) {
		runs = runs[:listLimit(filter)]
	}
	return runs, nil
}

func (s *DynamoStore) PutLead(ctx context.Context, lead *model.Lead) error {
	item, err := attributevalue.MarshalMap(lead)
	if err != nil {
		return eris.Wrap(err, "dynamodb: marshal lead")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Leads),
		Item:      item,
	})
	return eris.Wrapf(err, "dynamodb: put lead %s", lead.ID)
}

func (s *DynamoStore) ListLeads(ctx context.Context, runID string) ([]model.Lead, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Leads),
		IndexName:              aws.String(s.tables.LeadsIndex),
		KeyConditionExpression: aws.String("runId = :r"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberS{Value: runID},
		},
	}

	var leads []model.Lead
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, eris.Wrapf(err, "dynamodb: query leads %s", runID)
		}
		var page []model.Lead
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, eris.Wrap(err, "dynamodb: unmarshal leads")
		}
		leads = append(leads, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return leads, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func runKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
