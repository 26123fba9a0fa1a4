package dynamodb

import (
	"strings"

	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"accountx/internal/domain"
)

const (
	metaSK  = "META"
	lockSK  = "LOCK"
	ownerSK = "OWNER"

	entityGrant      = "grant"
	entityMembership = "membership"
)

func userPK(userID string) string       { return "USER#" + userID }
func groupPK(groupID string) string     { return "GROUP#" + groupID }
func groupNamePK(name string) string    { return "GROUPNAME#" + name }
func memberSK(userID string) string     { return "MEMBER#" + userID }
func memberOfSK(groupID string) string  { return "MEMBEROF#" + groupID }
func companyPK(companyID string) string { return "COMPANY#" + companyID }
func companyNamePK(name string) string  { return "COMPANYNAME#" + name }
func recordPK(recordID string) string   { return "REC#" + recordID }
func objectPK(objectID string) string   { return "OBJ#" + objectID }

func subjectPK(s domain.Subject) string {
	return "SUBJ#" + string(s.Type) + "#" + s.ID
}

// companyRecordSK indexes a record copy under its company partition.
func companyRecordSK(entity domain.EntityType, recordID string) string {
	return strings.ToUpper(string(entity)) + "#" + recordID
}

func companyRecordPrefix(entity domain.EntityType) string {
	return strings.ToUpper(string(entity)) + "#"
}

// grantPrefix narrows grant queries to one permission; an empty permission matches all.
func grantPrefix(perm domain.Permission) string {
	if !perm.Valid() {
		return "GRANT#"
	}
	return "GRANT#" + perm.String() + "#"
}

func grantObjectSK(g domain.Grant) string {
	return grantPrefix(g.Permission) + string(g.Subject.Type) + "#" + g.Subject.ID
}

func grantSubjectSK(g domain.Grant) string {
	return grantPrefix(g.Permission) + g.ObjectID
}

func key(pk, sk string) map[string]awsv2types.AttributeValue {
	return map[string]awsv2types.AttributeValue{
		"PK": &awsv2types.AttributeValueMemberS{Value: pk},
		"SK": &awsv2types.AttributeValueMemberS{Value: sk},
	}
}
