package dynamodb

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDB is an in-process table that understands the handful of expressions the
// store issues. pageSize > 0 forces paginated Query and Scan results.
type fakeDB struct {
	mu        sync.Mutex
	items     map[string]map[string]awsv2types.AttributeValue
	pageSize  int
	transacts int
	single    int
}

func newFakeDB() *fakeDB {
	return &fakeDB{items: make(map[string]map[string]awsv2types.AttributeValue)}
}

func str(av awsv2types.AttributeValue) string {
	if s, ok := av.(*awsv2types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemID(item map[string]awsv2types.AttributeValue) string {
	return str(item["PK"]) + "|" + str(item["SK"])
}

func (f *fakeDB) holds(cond *string, id string) bool {
	_, exists := f.items[id]
	switch aws.ToString(cond) {
	case "attribute_exists(PK)":
		return exists
	case "attribute_not_exists(PK)":
		return !exists
	}
	return true
}

func (f *fakeDB) GetItem(_ context.Context, in *awsv2dynamodb.GetItemInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID(in.Key)]
	if !ok {
		return &awsv2dynamodb.GetItemOutput{}, nil
	}
	return &awsv2dynamodb.GetItemOutput{Item: maps.Clone(item)}, nil
}

func (f *fakeDB) PutItem(_ context.Context, in *awsv2dynamodb.PutItemInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single++
	id := itemID(in.Item)
	if !f.holds(in.ConditionExpression, id) {
		return nil, &awsv2types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	f.items[id] = maps.Clone(in.Item)
	return &awsv2dynamodb.PutItemOutput{}, nil
}

func (f *fakeDB) DeleteItem(_ context.Context, in *awsv2dynamodb.DeleteItemInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single++
	id := itemID(in.Key)
	if !f.holds(in.ConditionExpression, id) {
		return nil, &awsv2types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	delete(f.items, id)
	return &awsv2dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDB) Query(_ context.Context, in *awsv2dynamodb.QueryInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":sk"])
	page, last := f.page(in.ExclusiveStartKey, func(item map[string]awsv2types.AttributeValue) bool {
		return str(item["PK"]) == pk && strings.HasPrefix(str(item["SK"]), prefix)
	})
	return &awsv2dynamodb.QueryOutput{Items: page, LastEvaluatedKey: last}, nil
}

func (f *fakeDB) Scan(_ context.Context, in *awsv2dynamodb.ScanInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entity := str(in.ExpressionAttributeValues[":e"])
	sk := str(in.ExpressionAttributeValues[":sk"])
	page, last := f.page(in.ExclusiveStartKey, func(item map[string]awsv2types.AttributeValue) bool {
		return str(item["EntityType"]) == entity && str(item["SK"]) == sk
	})
	return &awsv2dynamodb.ScanOutput{Items: page, LastEvaluatedKey: last}, nil
}

func (f *fakeDB) page(start map[string]awsv2types.AttributeValue, match func(map[string]awsv2types.AttributeValue) bool) ([]map[string]awsv2types.AttributeValue, map[string]awsv2types.AttributeValue) {
	ids := slices.Sorted(maps.Keys(f.items))
	var out []map[string]awsv2types.AttributeValue
	after := ""
	if start != nil {
		after = itemID(start)
	}
	for _, id := range ids {
		if after != "" && id <= after {
			continue
		}
		item := f.items[id]
		if !match(item) {
			continue
		}
		if f.pageSize > 0 && len(out) == f.pageSize {
			prev := out[len(out)-1]
			return out, key(str(prev["PK"]), str(prev["SK"]))
		}
		out = append(out, maps.Clone(item))
	}
	return out, nil
}

func (f *fakeDB) TransactWriteItems(_ context.Context, in *awsv2dynamodb.TransactWriteItemsInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts++
	if len(in.TransactItems) > maxTransactItems {
		return nil, errors.New("too many items in transaction")
	}
	reasons := make([]awsv2types.CancellationReason, len(in.TransactItems))
	failed := false
	seen := map[string]bool{}
	for i, ti := range in.TransactItems {
		id, cond := transactTarget(ti)
		if seen[id] {
			return nil, errors.New("transaction touches an item twice")
		}
		seen[id] = true
		reasons[i].Code = aws.String("None")
		if !f.holds(cond, id) {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &awsv2types.TransactionCanceledException{Message: aws.String("canceled"), CancellationReasons: reasons}
	}
	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[itemID(ti.Put.Item)] = maps.Clone(ti.Put.Item)
		case ti.Delete != nil:
			delete(f.items, itemID(ti.Delete.Key))
		}
	}
	return &awsv2dynamodb.TransactWriteItemsOutput{}, nil
}

func transactTarget(ti awsv2types.TransactWriteItem) (string, *string) {
	switch {
	case ti.Put != nil:
		return itemID(ti.Put.Item), ti.Put.ConditionExpression
	case ti.Delete != nil:
		return itemID(ti.Delete.Key), ti.Delete.ConditionExpression
	default:
		return itemID(ti.ConditionCheck.Key), ti.ConditionCheck.ConditionExpression
	}
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
