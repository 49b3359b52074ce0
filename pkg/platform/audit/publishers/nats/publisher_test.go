package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	audit "lexicon/pkg/platform/audit"
)

func TestSubject(t *testing.T) {
	p := NewWithConn(nil, "lexicon.provenance")

	assert.Equal(t, "lexicon.provenance.Terminology.Edit",
		p.Subject(audit.Event{ResourceType: "Terminology", Action: "Edit"}))
	assert.Equal(t, "lexicon.provenance.Table.SoftDeleteAllMappings",
		p.Subject(audit.Event{ResourceType: "Table", Action: "SoftDeleteAllMappings"}))
	assert.Equal(t, "lexicon.provenance._.a_b",
		p.Subject(audit.Event{Action: "a.b"}), "tokens never introduce extra subject levels")
}
