package aws

import (
	"context"
	"fmt"

	"pulse-monitor/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// LoadConfig 加载 AWS 默认凭证链配置
func LoadConfig(ctx context.Context, cfg *config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewDynamoDBClient 创建 DynamoDB 客户端，可选自定义 endpoint（LocalStack / dynamodb-local）
func NewDynamoDBClient(awsCfg aws.Config, cfg *config.AWSConfig) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// NewAPIGatewayClient 创建 API Gateway 客户端
func NewAPIGatewayClient(awsCfg aws.Config) *apigateway.Client {
	return apigateway.NewFromConfig(awsCfg)
}
