package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/healthvault-api/internal/domain"
)

// AttemptRepo stores registration attempts. PK: attempt_id.
type AttemptRepo struct {
	client    API
	tableName string
}

func NewAttemptRepo(client API, tableName string) *AttemptRepo {
	return &AttemptRepo{client: client, tableName: tableName}
}

func (r *AttemptRepo) Put(ctx context.Context, a *domain.RegistrationAttempt) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrAttemptID + ")"),
	})
	if _, failed := conditionFailed(err); failed {
		return fmt.Errorf("attempt id taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepo) Get(ctx context.Context, attemptID string) (*domain.RegistrationAttempt, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrAttemptID, attemptID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
	}
	var a domain.RegistrationAttempt
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return &a, nil
}

// MarkCompleted flips a pending attempt for contactValue to completed. A
// missing attempt is domain.ErrNotFound; one that already left pending or
// belongs to another contact is domain.ErrConflict.
func (r *AttemptRepo) MarkCompleted(ctx context.Context, attemptID, contactValue string, at time.Time) error {
	completedAt, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal completed_at: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(attrAttemptID, attemptID),
		UpdateExpression:    aws.String("SET #status = :completed, #completed_at = :at"),
		ConditionExpression: aws.String("attribute_exists(#pk) AND #status = :pending AND #contact = :contact"),
		ExpressionAttributeNames: map[string]string{
			"#pk":           attrAttemptID,
			"#status":       attrStatus,
			"#completed_at": attrCompletedAt,
			"#contact":      attrContactValue,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: string(domain.AttemptCompleted)},
			":pending":   &types.AttributeValueMemberS{Value: string(domain.AttemptPending)},
			":at":        completedAt,
			":contact":   &types.AttributeValueMemberS{Value: contactValue},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, failed := conditionFailed(err); failed {
		if old == nil {
			return fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("attempt %s not pending for contact: %w", attemptID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}
