package notifications

import (
	"errors"
	"testing"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMongoClassify(t *testing.T) {
	s := &MongoStore{}

	tests := []struct {
		name      string
		err       error
		wantIndex bool
	}{
		{
			name:      "sort overflow",
			err:       mongo.CommandError{Code: codeSortOverflow, Message: "Sort exceeded memory limit"},
			wantIndex: true,
		},
		{
			name:      "memory limit",
			err:       mongo.CommandError{Code: codeQueryExceededMemory, Message: "query exceeded memory limit"},
			wantIndex: true,
		},
		{
			name:      "duplicate key mentions an index",
			err:       mongo.CommandError{Code: 11000, Message: "E11000 duplicate key error collection: notifications index: _id_"},
			wantIndex: false,
		},
		{
			name:      "network error mentioning index",
			err:       errors.New("connection reset while reading index page"),
			wantIndex: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.classify(tt.err)
			if tt.wantIndex {
				assert.ErrorIs(t, got, lib.ErrIndexUnavailable)
				return
			}
			assert.NotErrorIs(t, got, lib.ErrIndexUnavailable)
			assert.True(t, lib.IsRetryable(got))
		})
	}
}
