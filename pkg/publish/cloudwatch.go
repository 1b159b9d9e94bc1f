package publish

import (
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/dancavallaro/serial2influx/pkg/awso"
	"github.com/dancavallaro/serial2influx/pkg/lineproto"
)

// CloudWatch rejects more dimensions than this on a single datum.
const maxDimensions = 30

type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

type CloudWatchMirrorConfig struct {
	Region    string
	Namespace string
}

// CloudWatchMirror puts one datum per point. The measurement name becomes the
// metric name and tags become dimensions.
type CloudWatchMirror struct {
	cw              PutMetricDataAPI
	metricNamespace string
}

// NewCloudWatchMirror resolves credentials and checks them with
// sts:GetCallerIdentity, so bad credentials surface before the first reading.
func NewCloudWatchMirror(ctx context.Context, cfg CloudWatchMirrorConfig) (*CloudWatchMirror, error) {
	if cfg.Namespace == "" {
		return nil, &InitError{Sink: "cloudwatch", Err: errors.New("namespace is required")}
	}

	stsProvider := awso.NewClientProvider(cfg.Region, func(c aws.Config) *sts.Client {
		return sts.NewFromConfig(c)
	})
	stsClient, err := stsProvider.Client(ctx)
	if err != nil {
		return nil, &InitError{Sink: "cloudwatch", Err: err}
	}
	if _, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return nil, &InitError{Sink: "cloudwatch", Err: fmt.Errorf("checking credentials: %w", err)}
	}

	cwProvider := awso.NewClientProvider(cfg.Region, func(c aws.Config) *cloudwatch.Client {
		return cloudwatch.NewFromConfig(c)
	})
	cw, err := cwProvider.Client(ctx)
	if err != nil {
		return nil, &InitError{Sink: "cloudwatch", Err: err}
	}

	return newCloudWatchMirror(cw, cfg.Namespace), nil
}

func newCloudWatchMirror(cw PutMetricDataAPI, namespace string) *CloudWatchMirror {
	return &CloudWatchMirror{cw: cw, metricNamespace: namespace}
}

func (m *CloudWatchMirror) Name() string {
	return "cloudwatch"
}

func (m *CloudWatchMirror) Mirror(ctx context.Context, point lineproto.Point) error {
	name, tags := lineproto.SplitSeries(point.Series)
	if len(tags) > maxDimensions {
		tags = tags[:maxDimensions]
	}

	dimensions := make([]types.Dimension, 0, len(tags))
	for _, tag := range tags {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(tag.Key),
			Value: aws.String(tag.Value),
		})
	}

	_, err := m.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.metricNamespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Dimensions: dimensions,
				Value:      aws.Float64(point.Value),
			},
		},
	})
	if err != nil {
		return &TransportError{
			Sink:    "cloudwatch",
			URL:     m.metricNamespace + "/" + name,
			Message: describeAWSError(err),
			Err:     err,
		}
	}
	return nil
}

func (m *CloudWatchMirror) Close() error {
	return nil
}

func describeAWSError(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
