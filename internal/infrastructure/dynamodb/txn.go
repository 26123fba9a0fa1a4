package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// maxTransactItems is the TransactWriteItems limit.
const maxTransactItems = 100

type opKind int

const (
	opPut opKind = iota
	opDelete
	opCheck
)

// writeOp is one staged item write. condErr replaces a failed condition.
type writeOp struct {
	kind    opKind
	pk, sk  string
	item    map[string]awsv2types.AttributeValue
	cond    string
	condErr error
}

func putOp(pk, sk, entityType string, v any) (writeOp, error) {
	item := map[string]awsv2types.AttributeValue{}
	if v != nil {
		av, err := attributevalue.MarshalMap(v)
		if err != nil {
			return writeOp{}, err
		}
		item = av
	}
	item["PK"] = &awsv2types.AttributeValueMemberS{Value: pk}
	item["SK"] = &awsv2types.AttributeValueMemberS{Value: sk}
	if entityType != "" {
		item["EntityType"] = &awsv2types.AttributeValueMemberS{Value: entityType}
	}
	return writeOp{kind: opPut, pk: pk, sk: sk, item: item}, nil
}

func deleteOp(pk, sk string) writeOp {
	return writeOp{kind: opDelete, pk: pk, sk: sk}
}

func checkExists(pk, sk string, condErr error) writeOp {
	return writeOp{kind: opCheck, pk: pk, sk: sk, cond: "attribute_exists(PK)", condErr: condErr}
}

func (op writeOp) ifNotExists(condErr error) writeOp {
	op.cond, op.condErr = "attribute_not_exists(PK)", condErr
	return op
}

func (op writeOp) ifExists(condErr error) writeOp {
	op.cond, op.condErr = "attribute_exists(PK)", condErr
	return op
}

func (op writeOp) id() string { return op.pk + "|" + op.sk }

func (op writeOp) transactItem(table string) awsv2types.TransactWriteItem {
	var cond *string
	if op.cond != "" {
		cond = aws.String(op.cond)
	}
	switch op.kind {
	case opPut:
		return awsv2types.TransactWriteItem{Put: &awsv2types.Put{
			TableName: aws.String(table), Item: op.item, ConditionExpression: cond,
		}}
	case opDelete:
		return awsv2types.TransactWriteItem{Delete: &awsv2types.Delete{
			TableName: aws.String(table), Key: key(op.pk, op.sk), ConditionExpression: cond,
		}}
	default:
		return awsv2types.TransactWriteItem{ConditionCheck: &awsv2types.ConditionCheck{
			TableName: aws.String(table), Key: key(op.pk, op.sk), ConditionExpression: cond,
		}}
	}
}

// batch collects writes. A later write to the same item replaces the earlier one,
// since a transaction may touch each item only once.
type batch struct {
	ops   []writeOp
	index map[string]int
}

func newBatch() *batch {
	return &batch{index: make(map[string]int)}
}

func (b *batch) add(ops ...writeOp) {
	for _, op := range ops {
		if i, ok := b.index[op.id()]; ok {
			if op.kind == opCheck && b.ops[i].kind != opCheck {
				continue
			}
			b.ops[i] = op
			continue
		}
		b.index[op.id()] = len(b.ops)
		b.ops = append(b.ops, op)
	}
}

func (b *batch) chunks() [][]writeOp {
	var out [][]writeOp
	for start := 0; start < len(b.ops); start += maxTransactItems {
		end := min(start+maxTransactItems, len(b.ops))
		out = append(out, b.ops[start:end])
	}
	return out
}

// commit writes the batch. A single write goes through PutItem or DeleteItem; larger
// batches use TransactWriteItems, one transaction per chunk of maxTransactItems.
func (c *Client) commit(ctx context.Context, segment string, b *batch) error {
	if len(b.ops) == 1 && b.ops[0].kind != opCheck {
		return c.writeOne(ctx, segment, b.ops[0])
	}
	for _, chunk := range b.chunks() {
		items := make([]awsv2types.TransactWriteItem, 0, len(chunk))
		for _, op := range chunk {
			items = append(items, op.transactItem(c.tableName))
		}
		err := xray.Capture(ctx, segment, func(ctx context.Context) error {
			_, err := c.db.TransactWriteItems(ctx, &awsv2dynamodb.TransactWriteItemsInput{TransactItems: items})
			return err
		})
		if err != nil {
			return translateCanceled(err, chunk)
		}
	}
	return nil
}

func (c *Client) writeOne(ctx context.Context, segment string, op writeOp) error {
	var cond *string
	if op.cond != "" {
		cond = aws.String(op.cond)
	}
	err := xray.Capture(ctx, segment, func(ctx context.Context) error {
		var err error
		if op.kind == opPut {
			_, err = c.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
				TableName:           aws.String(c.tableName),
				Item:                op.item,
				ConditionExpression: cond,
			})
		} else {
			_, err = c.db.DeleteItem(ctx, &awsv2dynamodb.DeleteItemInput{
				TableName:           aws.String(c.tableName),
				Key:                 key(op.pk, op.sk),
				ConditionExpression: cond,
			})
		}
		return err
	})
	if isConditionalCheckFailure(err) && op.condErr != nil {
		return fmt.Errorf("%w: %s", op.condErr, op.pk)
	}
	return err
}

func translateCanceled(err error, ops []writeOp) error {
	var canceled *awsv2types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return err
	}
	for i, reason := range canceled.CancellationReasons {
		if i < len(ops) && aws.ToString(reason.Code) == "ConditionalCheckFailed" && ops[i].condErr != nil {
			return fmt.Errorf("%w: %s", ops[i].condErr, ops[i].pk)
		}
	}
	return err
}
