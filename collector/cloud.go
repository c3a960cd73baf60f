package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"

	"github.com/ftahirops/perfdiag/model"
)

// DefaultMetadataTimeout bounds the metadata lookup so off-cloud hosts do
// not stall a run.
const DefaultMetadataTimeout = 2 * time.Second

// CloudProber resolves the instance identity of the host.
type CloudProber interface {
	Probe(ctx context.Context) model.Outcome[model.CloudIdentity]
}

// identityClient is the subset of the IMDS client used here.
type identityClient interface {
	GetInstanceIdentityDocument(ctx context.Context, in *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

// IMDSProber reads the EC2 instance identity document.
type IMDSProber struct {
	client  identityClient
	timeout time.Duration
}

// NewIMDSProber creates a prober with retries disabled and the given timeout.
func NewIMDSProber(timeout time.Duration) *IMDSProber {
	if timeout <= 0 {
		timeout = DefaultMetadataTimeout
	}
	client := imds.New(imds.Options{Retryer: aws.NopRetryer{}})
	return &IMDSProber{client: client, timeout: timeout}
}

func (p *IMDSProber) Probe(ctx context.Context) model.Outcome[model.CloudIdentity] {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		if isUnreachable(err) {
			return model.Unavailable[model.CloudIdentity](fmt.Sprintf("metadata service not reachable within %s", p.timeout))
		}
		return model.Failed[model.CloudIdentity](err)
	}
	doc := out.InstanceIdentityDocument
	return model.OK(model.CloudIdentity{
		Provider:         "aws",
		InstanceID:       doc.InstanceID,
		InstanceType:     doc.InstanceType,
		Region:           doc.Region,
		AvailabilityZone: doc.AvailabilityZone,
		AccountID:        doc.AccountID,
	})
}

// isUnreachable treats timeouts and dial failures as "not on a cloud host".
func isUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
