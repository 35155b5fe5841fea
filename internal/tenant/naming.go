package tenant

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DeriveID produces the tenant ID deterministically from the owner and the
// creation instant, so the same provisioning request never mints two IDs.
func DeriveID(ownerUserID string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(ownerUserID + "|" + createdAt.UTC().Format(time.RFC3339Nano)))
	return "ten_" + hex.EncodeToString(sum[:])[:12]
}

// NamespaceFor maps a tenant ID to its Kubernetes namespace. The prefix is
// stripped because namespace names are DNS-1123 labels (no underscores).
func NamespaceFor(tenantID string) string {
	return "ws-" + strings.TrimPrefix(tenantID, "ten_")
}

// SubdomainFor maps a tenant ID to its workspace subdomain.
func SubdomainFor(tenantID string) string {
	return "ws-" + strings.TrimPrefix(tenantID, "ten_")
}

// URLFor builds the public workspace URL under the platform base domain.
func URLFor(tenantID, baseDomain string) string {
	return "https://" + SubdomainFor(tenantID) + "." + baseDomain
}
