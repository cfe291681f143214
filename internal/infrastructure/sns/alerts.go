package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/thinlam/otp-server/internal/config"
)

// AlertPublisher pushes operational alerts (OTP delivery failures) to an
// SNS topic so on-call gets paged without tailing logs.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject, message string) error
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(cfg *config.Config) (AlertPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &publisher{client: sns.NewFromConfig(awsCfg), topicARN: cfg.SNSAlertTopicARN}, nil
}

func (p *publisher) PublishAlert(ctx context.Context, subject, message string) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	return err
}
