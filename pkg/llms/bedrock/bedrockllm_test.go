package bedrock_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/llms/bedrock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	modelID string
}

func (f *fakeAPI) InvokeModelWithResponseStream(_ context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error) {
	f.modelID = *params.ModelId
	return nil, errors.New("expired token")
}

func TestNew(t *testing.T) {
	t.Parallel()

	llm, err := bedrock.New(bedrock.WithClient(&fakeAPI{}))
	require.NoError(t, err)
	assert.Equal(t, bedrock.DefaultModel, llm.GetName())
	assert.Equal(t, llms.ProviderBedrock, llm.GetProviderType())

	llm, err = bedrock.New(
		bedrock.WithModel("anthropic.claude-3-haiku-20240307-v1:0"),
		bedrock.WithRegion("us-west-2"),
		bedrock.WithBaseURL("http://127.0.0.1:0"),
		bedrock.WithCredentials("AKIDEXAMPLE", "secret", ""),
	)
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", llm.GetName())
}

func TestStreamCompletion(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	llm, err := bedrock.New(bedrock.WithClient(api))
	require.NoError(t, err)

	_, err = llm.StreamCompletion(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleUser, "hi")},
		llms.WithModel("anthropic.claude-3-haiku-20240307-v1:0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired token")
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", api.modelID)

	_, err = llm.StreamCompletion(context.Background(), nil, llms.WithModel("meta.llama3-2-1b-instruct-v1:0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
