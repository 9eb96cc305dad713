package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/mocks"
	"github.com/phrazzld/patentgate/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockResourceClient_Defaults(t *testing.T) {
	t.Parallel()

	client := &mocks.MockResourceClient{}
	ctx := context.Background()

	outcome, err := client.Initiate(ctx, "CN1234567A")
	require.NoError(t, err)
	require.NotNil(t, outcome.Challenge)
	assert.Nil(t, outcome.Direct)

	resumed, err := client.Resume(ctx, outcome.Challenge.State, "CN1234567A", "abcd")
	require.NoError(t, err)
	assert.Equal(t, resource.ResumeWrongAnswer, resumed.Kind)

	path, err := client.Materialize(ctx, domain.SessionState{}, resource.ArtifactRef{FileName: "CN1234567A.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/CN1234567A.pdf", path)

	assert.Equal(t, []string{"CN1234567A"}, client.InitiateCalls())
	require.Len(t, client.ResumeCalls(), 1)
	assert.Equal(t, "abcd", client.ResumeCalls()[0].Answer)
	assert.Len(t, client.MaterializeCalls(), 1)
}

func TestMockResourceClient_CustomFunctions(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("site down")
	client := &mocks.MockResourceClient{
		InitiateFn: func(context.Context, string) (resource.InitiateOutcome, error) {
			return resource.InitiateOutcome{}, sentinel
		},
		ResumeFn: func(context.Context, domain.SessionState, string, string) (resource.ResumeOutcome, error) {
			return mocks.ResolvedOutcome("CN1234567A.pdf"), nil
		},
	}

	_, err := client.Initiate(context.Background(), "CN1234567A")
	assert.ErrorIs(t, err, sentinel)

	outcome, err := client.Resume(context.Background(), domain.SessionState{}, "CN1234567A", "x")
	require.NoError(t, err)
	assert.Equal(t, resource.ResumeResolved, outcome.Kind)
	assert.Equal(t, "CN1234567A.pdf", outcome.Artifact.FileName)
}

func TestMockSolver(t *testing.T) {
	t.Parallel()

	solver := &mocks.MockSolver{Answer: "7fk2"}
	answer, err := solver.Suggest(context.Background(), []byte("img"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "7fk2", answer)
	assert.Equal(t, 1, solver.Calls())
}
