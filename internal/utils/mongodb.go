package utils

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/desafio-dunas/registration-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultQueryTimeout is the default timeout for MongoDB queries
const DefaultQueryTimeout = 10 * time.Second

// documentValidationFailureCode is returned when a write violates the collection validator
const documentValidationFailureCode = 121

var dupKeyIndexRegex = regexp.MustCompile(`index: (\S+) dup key`)

// conflictFieldByIndex maps unique index names to the field reported to callers
var conflictFieldByIndex = map[string]string{
	"document_number_active": models.ConflictFieldDocumentNumber,
	"email_active":           models.ConflictFieldEmail,
	"team_role_active":       models.ConflictFieldRoleInTeam,
	"number_1":               models.ConflictFieldNumber,
}

// FindOneWithTimeout performs a MongoDB FindOne operation with timeout
func FindOneWithTimeout(ctx context.Context, collection *mongo.Collection, filter bson.M, result interface{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return collection.FindOne(ctx, filter).Decode(result)
}

// DuplicateKeyIndex returns the name of the unique index a duplicate key error
// refers to, or "" when err is not a duplicate key error.
func DuplicateKeyIndex(err error) string {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return ""
	}
	for _, msg := range serverMessages(err) {
		if m := dupKeyIndexRegex.FindStringSubmatch(msg); m != nil {
			return m[1]
		}
	}
	return ""
}

// ConflictFromDuplicateKey converts a duplicate key error on the registrations
// collection into a *models.ConflictError. Other errors are returned unchanged.
func ConflictFromDuplicateKey(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	field, ok := conflictFieldByIndex[DuplicateKeyIndex(err)]
	if !ok {
		field = "unknown"
	}
	return &models.ConflictError{Field: field}
}

// IsDocumentValidationError reports whether err comes from the collection validator
func IsDocumentValidationError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == documentValidationFailureCode {
				return true
			}
		}
	}
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == documentValidationFailureCode
}

// schemaRule is one entry of schemaRulesNotSatisfied in a validation failure's errInfo
type schemaRule struct {
	OperatorName           string   `bson:"operatorName"`
	MissingProperties      []string `bson:"missingProperties"`
	PropertiesNotSatisfied []struct {
		PropertyName string `bson:"propertyName"`
		Details      []struct {
			OperatorName string `bson:"operatorName"`
			Reason       string `bson:"reason"`
		} `bson:"details"`
	} `bson:"propertiesNotSatisfied"`
}

type schemaFailure struct {
	SchemaRulesNotSatisfied []schemaRule `bson:"schemaRulesNotSatisfied"`
}

// SchemaViolations extracts one FieldError per property the collection validator
// rejected. It falls back to a single "registration" entry when the server sent no
// usable details.
func SchemaViolations(err error) []models.FieldError {
	var fields []models.FieldError
	seen := map[string]bool{}
	add := func(field, message string) {
		if field == "" || seen[field] {
			return
		}
		seen[field] = true
		fields = append(fields, models.FieldError{Field: field, Message: message})
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code != documentValidationFailureCode || len(e.Details) == 0 {
				continue
			}
			for _, rule := range schemaRules(e.Details) {
				for _, name := range rule.MissingProperties {
					add(name, "is required")
				}
				for _, p := range rule.PropertiesNotSatisfied {
					message := "does not satisfy the collection schema"
					if len(p.Details) > 0 {
						if p.Details[0].Reason != "" {
							message = p.Details[0].Reason
						} else if p.Details[0].OperatorName != "" {
							message = "failed " + p.Details[0].OperatorName + " rule"
						}
					}
					add(p.PropertyName, message)
				}
			}
		}
	}

	if len(fields) == 0 {
		return []models.FieldError{{Field: "registration", Message: "record rejected by schema validation"}}
	}
	return fields
}

// schemaRules reads errInfo, which nests the rules under "details"
func schemaRules(errInfo bson.Raw) []schemaRule {
	var wrapped struct {
		Details schemaFailure `bson:"details"`
	}
	if err := bson.Unmarshal(errInfo, &wrapped); err == nil && len(wrapped.Details.SchemaRulesNotSatisfied) > 0 {
		return wrapped.Details.SchemaRulesNotSatisfied
	}
	var direct schemaFailure
	if err := bson.Unmarshal(errInfo, &direct); err != nil {
		return nil
	}
	return direct.SchemaRulesNotSatisfied
}

func serverMessages(err error) []string {
	var msgs []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			msgs = append(msgs, e.Message)
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			msgs = append(msgs, e.Message)
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		msgs = append(msgs, ce.Message)
	}
	return append(msgs, err.Error())
}
