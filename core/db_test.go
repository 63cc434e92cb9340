package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderingClause(t *testing.T) {
	allowed := map[string]string{"email": "u.email", "created_at": "u.created_at"}

	tests := []struct {
		name      string
		orderings []DBOrdering
		want      string
	}{
		{name: "none", want: "u.created_at DESC"},
		{name: "unknown fields are dropped", orderings: []DBOrdering{{Field: "password_hash"}}, want: "u.created_at DESC"},
		{name: "ascending", orderings: []DBOrdering{{Field: "email", Ascending: true}}, want: "u.email ASC"},
		{
			name:      "several",
			orderings: []DBOrdering{{Field: "email"}, {Field: "lol"}, {Field: "created_at", Ascending: true}},
			want:      "u.email DESC, u.created_at ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderingClause(tt.orderings, allowed, "u.created_at DESC"))
		})
	}
}
