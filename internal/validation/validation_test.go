package validation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"alice@example.com", true},
		{"a.b+tag@sub.example.co", true},

		// Invalid cases
		{"", false},
		{"alice", false},
		{"alice@", false},
		{"@example.com", false},
		{"alice@example", false}, // no TLD dot
		{"al ice@example.com", false},
	}

	for _, tc := range tests {
		result := IsValidEmail(tc.email)
		if result != tc.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tc.email, result, tc.valid)
		}
	}
}

func TestIsValidUserID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"user-123", true},
		{"u", true},
		{"auth0.abc_def-123", true},

		// Invalid cases
		{"", false},
		{"-leading-dash", false},
		{".leading-dot", false},
		{"has space", false},
		{"has/slash", false},
	}

	for _, tc := range tests {
		result := IsValidUserID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidUserID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestIsValidTenantID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"ten_0123456789ab", true},
		{"ten_abcdefabcdef", true},

		// Invalid cases
		{"", false},
		{"ten_", false},
		{"ten_0123456789", false},    // too short
		{"ten_0123456789abc", false}, // too long
		{"ten_0123456789AB", false},  // uppercase hex
		{"abc_0123456789ab", false},  // wrong prefix
	}

	for _, tc := range tests {
		result := IsValidTenantID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidTenantID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"with\x00null", 20, "withnull"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("ownerUserId", ""),
		ValidEmail("ownerEmail", "not-an-email"),
		ValidUserID("ownerUserId", "ok-id"),
		KnownTier("tierName", "starter"),
		MaxLength("reason", "short", 100),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "ownerUserId" || errs[1].Field != "ownerEmail" {
		t.Errorf("unexpected error fields: %v", errs)
	}
}

func TestValidate_EmptyOptionalFieldsPass(t *testing.T) {
	errs := Validate(
		ValidEmail("ownerEmail", ""),
		ValidUserID("ownerUserId", ""),
		KnownTier("tierName", ""),
	)
	if len(errs) != 0 {
		t.Errorf("expected no errors for empty optional fields, got %v", errs)
	}
}

func TestKnownTier(t *testing.T) {
	if err := KnownTier("tierName", "team")(); err != nil {
		t.Errorf("team should be a known tier: %v", err)
	}
	if err := KnownTier("tierName", "platinum")(); err == nil {
		t.Error("platinum should not be a known tier")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "validation failed" {
		t.Errorf("unexpected message: %q", empty.Error())
	}
	errs := ValidationErrors{{Field: "tierName", Message: "unknown tier"}}
	if errs.Error() != "tierName: unknown tier" {
		t.Errorf("unexpected message: %q", errs.Error())
	}
}

func TestTenantIDParamMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/workspaces/:id", TenantIDParamMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		id     string
		status int
	}{
		{"ten_0123456789ab", http.StatusOK},
		{"ten_NOTHEX", http.StatusBadRequest},
		{"bogus", http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/workspaces/"+tc.id, nil)
		router.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Errorf("id %q: status = %d, want %d", tc.id, w.Code, tc.status)
		}
	}
}
