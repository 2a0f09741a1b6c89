package identity

import (
	"testing"
)

func TestUserFullName(t *testing.T) {
	cases := []struct {
		name     string
		user     *User
		expected string
	}{
		{
			name:     "first and last",
			user:     &User{FirstName: "Pepe", LastName: "Rone"},
			expected: "Pepe Rone",
		},
		{
			name:     "first only",
			user:     &User{FirstName: "Pepe"},
			expected: "Pepe",
		},
		{
			name:     "last only",
			user:     &User{LastName: "Rone"},
			expected: "Rone",
		},
		{
			name:     "neither",
			user:     &User{},
			expected: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.FullName(); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestUserAddMetadata(t *testing.T) {
	u := &User{}

	u.AddMetadata("source", "signup-form").AddMetadata("campaign", "spring")

	if u.Metadata["source"] != "signup-form" {
		t.Fatalf("expected metadata source, got %#v", u.Metadata["source"])
	}
	if u.Metadata["campaign"] != "spring" {
		t.Fatalf("expected metadata campaign, got %#v", u.Metadata["campaign"])
	}

	u.AddMetadata("source", "import")
	if u.Metadata["source"] != "import" {
		t.Fatalf("expected metadata overwrite, got %#v", u.Metadata["source"])
	}
}
