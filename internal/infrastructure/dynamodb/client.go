package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"

	"accountx/internal/domain"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *awsv2dynamodb.GetItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *awsv2dynamodb.PutItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *awsv2dynamodb.DeleteItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *awsv2dynamodb.QueryInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *awsv2dynamodb.ScanInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *awsv2dynamodb.TransactWriteItemsInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.TransactWriteItemsOutput, error)
}

type Client struct {
	db        API
	tableName string
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg)
	return &Client{db: client, tableName: tableName}, nil
}

// NewClientWithAPI wraps an already configured API, e.g. a local endpoint or a fake.
func NewClientWithAPI(api API, tableName string) *Client {
	return &Client{db: api, tableName: tableName}
}

func (c *Client) getItem(ctx context.Context, segment string, key map[string]awsv2types.AttributeValue, out any) error {
	item, err := c.getRaw(ctx, segment, key)
	if err != nil {
		return err
	}
	return attributevalue.UnmarshalMap(item, out)
}

func (c *Client) getRaw(ctx context.Context, segment string, key map[string]awsv2types.AttributeValue) (map[string]awsv2types.AttributeValue, error) {
	var res *awsv2dynamodb.GetItemOutput
	err := xray.Capture(ctx, segment, func(ctx context.Context) error {
		var e error
		res, e = c.db.GetItem(ctx, &awsv2dynamodb.GetItemInput{
			TableName: aws.String(c.tableName),
			Key:       key,
		})
		return e
	})
	if err != nil {
		return nil, err
	}
	if res.Item == nil {
		return nil, domain.ErrNotFound
	}
	return res.Item, nil
}

// queryPrefix returns every item under pk whose sort key starts with prefix.
func (c *Client) queryPrefix(ctx context.Context, segment, pk, prefix string) ([]map[string]awsv2types.AttributeValue, error) {
	input := &awsv2dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: pk},
			":sk": &awsv2types.AttributeValueMemberS{Value: prefix},
		},
	}
	var items []map[string]awsv2types.AttributeValue
	for {
		var out *awsv2dynamodb.QueryOutput
		err := xray.Capture(ctx, segment, func(ctx context.Context) error {
			var e error
			out, e = c.db.Query(ctx, input)
			return e
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// scanEntity returns the primary items of one entity type.
func (c *Client) scanEntity(ctx context.Context, entity string, projection string) ([]map[string]awsv2types.AttributeValue, error) {
	input := &awsv2dynamodb.ScanInput{
		TableName:        aws.String(c.tableName),
		FilterExpression: aws.String("EntityType = :e AND SK = :sk"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":e":  &awsv2types.AttributeValueMemberS{Value: entity},
			":sk": &awsv2types.AttributeValueMemberS{Value: metaSK},
		},
	}
	if projection != "" {
		input.ProjectionExpression = aws.String(projection)
	}
	var items []map[string]awsv2types.AttributeValue
	for {
		var out *awsv2dynamodb.ScanOutput
		err := xray.Capture(ctx, "DynamoDB.Scan", func(ctx context.Context) error {
			var e error
			out, e = c.db.Scan(ctx, input)
			return e
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func isConditionalCheckFailure(err error) bool {
	var condErr *awsv2types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
