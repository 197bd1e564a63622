package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must ensure key construction prevents cross-entity collisions (prefix by domain/type).
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

func EnvironmentUUID(environment string) uuid.UUID {
	return UUID("go-sweep:environment:" + strings.ToLower(strings.TrimSpace(environment)))
}

func RuleUUID(ruleID string) uuid.UUID {
	return UUID("go-sweep:rule:" + strings.TrimSpace(ruleID))
}

func NodeUUID(environment, nodeID string) uuid.UUID {
	return UUID("go-sweep:node:" + strings.ToLower(strings.TrimSpace(environment)) + ":" + strings.TrimSpace(nodeID))
}

func ReportUUID(runID string) uuid.UUID {
	return UUID("go-sweep:report:" + strings.TrimSpace(runID))
}
