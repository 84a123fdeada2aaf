package docstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_qdrantEndpoint(t *testing.T) {
	var cases = []struct {
		url  string
		host string
		port int
	}{
		{url: "http://localhost:6333", host: "localhost", port: 6334},
		{url: "http://qdrant:7000", host: "qdrant", port: 7001},
		{url: "http://qdrant", host: "qdrant", port: 6334},
		{url: "", host: "localhost", port: 6334},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			host, port, err := qdrantEndpoint(c.url)
			require.NoError(t, err)
			assert.Equal(t, c.host, host)
			assert.Equal(t, c.port, port)
		})
	}
}

func Test_pointID(t *testing.T) {
	id, err := pointID("5d41402abc4b2a76b9719d911017c592")
	require.NoError(t, err)
	assert.Equal(t, "5d41402a-bc4b-2a76-b971-9d911017c592", id)

	for _, bad := range []string{
		"not-a-digest",
		"5D41402ABC4B2A76B9719D911017C592",
		"5d41402a-bc4b-2a76-b971-9d911017c592",
		"{5d41402abc4b2a76b9719d911017c592}",
		"urn:uuid:5d41402abc4b2a76b9719d911017c592",
		"5d41402abc4b2a76b9719d911017c59",
	} {
		_, err = pointID(bad)
		assert.Error(t, err, bad)
	}
}

func Test_QdrantStore_GetRejectsOtherIDForms(t *testing.T) {
	s := &QdrantStore{}

	_, ok, err := s.Get(context.Background(), "5D41402ABC4B2A76B9719D911017C592")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_payloadRoundTrip(t *testing.T) {
	e := Entry{
		ID:       "5d41402abc4b2a76b9719d911017c592",
		Content:  "hello",
		Metadata: Metadata{File: "doc.txt", BlockTitle: "hello"},
	}

	assert.Equal(t, e, entryOf(qdrant.NewValueMap(payloadOf(e))))
	assert.Equal(t, Entry{}, entryOf(nil))
}
