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

// VerificationRepo stores OTP records. PK: otp_id.
// GSI contact_purpose-otp_id-index serves the active-code lookup.
type VerificationRepo struct {
	client    API
	tableName string
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.OtpVerification) error {
	rec := *v
	rec.ContactPurpose = domain.ContactPurposeKey(v.ContactValue, v.Purpose)
	item, err := attributevalue.MarshalMap(&rec)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrOtpID + ")"),
	})
	if _, failed := conditionFailed(err); failed {
		return fmt.Errorf("verification id taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

// FindLatest pages through the records for contact and purpose and returns
// the newest one that has not expired at now, used or not. Expiry is checked
// here rather than in a filter because stored timestamps do not sort as
// strings.
func (r *VerificationRepo) FindLatest(ctx context.Context, contactValue string, purpose domain.OtpPurpose, now time.Time) (*domain.OtpVerification, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexContactPurpose),
		KeyConditionExpression: aws.String("#cp = :cp"),
		ExpressionAttributeNames: map[string]string{
			"#cp": attrContactPurpose,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cp": &types.AttributeValueMemberS{Value: domain.ContactPurposeKey(contactValue, purpose)},
		},
	})

	var best *domain.OtpVerification
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query verifications: %w", err)
		}
		var recs []domain.OtpVerification
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal verifications: %w", err)
		}
		for i := range recs {
			v := &recs[i]
			if !now.Before(v.ExpiresAt) {
				continue
			}
			if best == nil || newer(v, best) {
				best = v
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return best, nil
}

// newer orders by CreatedAt, then by id. ULIDs issued later sort higher.
func newer(a, b *domain.OtpVerification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.OtpID > b.OtpID
}

// MarkUsed sets is_used only if it is still false, so at most one caller
// consumes a given record.
func (r *VerificationRepo) MarkUsed(ctx context.Context, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(attrOtpID, otpID),
		UpdateExpression:    aws.String("SET #used = :true"),
		ConditionExpression: aws.String("attribute_exists(#pk) AND #used = :false"),
		ExpressionAttributeNames: map[string]string{
			"#pk":   attrOtpID,
			"#used": attrIsUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, failed := conditionFailed(err); failed {
		if old == nil {
			return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("verification %s: %w", otpID, domain.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("mark verification used: %w", err)
	}
	return nil
}
