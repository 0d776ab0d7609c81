package secrets

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rotisserie/eris"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMProvider reads SecureString parameters from AWS Systems Manager.
type SSMProvider struct {
	client SSMAPI
}

// NewSSMProvider creates an SSM-backed provider.
func NewSSMProvider(client SSMAPI) *SSMProvider {
	return &SSMProvider{client: client}
}

// Get implements Provider.
func (p *SSMProvider) Get(ctx context.Context, name string) (string, error) {
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", eris.Wrapf(err, "ssm: get parameter %s", name)
	}
	if out.Parameter == nil {
		return "", eris.Errorf("ssm: parameter %s has no value", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}
