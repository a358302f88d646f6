package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartwell/studioline-backend/pkg/config"
	pkgstripe "github.com/mhartwell/studioline-backend/pkg/stripe"
)

func TestNewStripeClientUsesInjectedAPI(t *testing.T) {
	client, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{
		APIKey:        "sk_test_abc",
		WebhookSecret: "whsec_abc",
	}, nil)
	require.NoError(t, err)

	wrapped := NewStripeClient(client)
	require.NotNil(t, wrapped)

	wrapper, ok := wrapped.(*stripeClientWrapper)
	require.True(t, ok)
	assert.Same(t, client.API(), wrapper.api)
}

func TestNewStripeClientRequiresClient(t *testing.T) {
	assert.Nil(t, NewStripeClient(nil))
}
