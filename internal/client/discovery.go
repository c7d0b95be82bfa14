package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/go-redis/redis/v8"
)

// EndpointDiscoverer 解析范围服务的基础地址
type EndpointDiscoverer interface {
	Discover(ctx context.Context) (string, error)
}

// StaticDiscoverer 固定地址
type StaticDiscoverer struct {
	BaseURL string
}

func (d StaticDiscoverer) Discover(ctx context.Context) (string, error) {
	if d.BaseURL == "" {
		return "", fmt.Errorf("range service base url is not configured")
	}
	return strings.TrimRight(d.BaseURL, "/"), nil
}

// RedisRegistryDiscoverer 从 Redis 哈希注册表读取地址：HGET <registryKey> <serviceID>
type RedisRegistryDiscoverer struct {
	client      *redis.Client
	registryKey string
	serviceID   string
}

// NewRedisRegistryDiscoverer 创建 Redis 注册表发现器
func NewRedisRegistryDiscoverer(client *redis.Client, registryKey, serviceID string) *RedisRegistryDiscoverer {
	return &RedisRegistryDiscoverer{
		client:      client,
		registryKey: registryKey,
		serviceID:   serviceID,
	}
}

func (d *RedisRegistryDiscoverer) Discover(ctx context.Context) (string, error) {
	url, err := d.client.HGet(ctx, d.registryKey, d.serviceID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("service %s not registered in %s", d.serviceID, d.registryKey)
		}
		return "", fmt.Errorf("failed to read service registry: %w", err)
	}
	if url == "" {
		return "", fmt.Errorf("service %s has empty endpoint", d.serviceID)
	}
	return strings.TrimRight(url, "/"), nil
}

// RestAPIGetter API Gateway GetRestApi（*apigateway.Client 满足该接口）
type RestAPIGetter interface {
	GetRestApi(ctx context.Context, params *apigateway.GetRestApiInput, optFns ...func(*apigateway.Options)) (*apigateway.GetRestApiOutput, error)
}

// APIGatewayDiscoverer 通过 API Gateway rest-api id 拼出调用地址
// https://<id>.execute-api.<region>.amazonaws.com/<stage>
type APIGatewayDiscoverer struct {
	api       RestAPIGetter
	restAPIID string
	region    string
	stage     string
}

// NewAPIGatewayDiscoverer 创建 API Gateway 发现器
func NewAPIGatewayDiscoverer(api RestAPIGetter, restAPIID, region, stage string) *APIGatewayDiscoverer {
	return &APIGatewayDiscoverer{
		api:       api,
		restAPIID: restAPIID,
		region:    region,
		stage:     stage,
	}
}

func (d *APIGatewayDiscoverer) Discover(ctx context.Context) (string, error) {
	out, err := d.api.GetRestApi(ctx, &apigateway.GetRestApiInput{
		RestApiId: aws.String(d.restAPIID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get rest api %s: %w", d.restAPIID, err)
	}

	id := aws.ToString(out.Id)
	if id == "" {
		return "", fmt.Errorf("rest api %s has no id", d.restAPIID)
	}

	url := fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com", id, d.region)
	if d.stage != "" {
		url += "/" + strings.Trim(d.stage, "/")
	}
	return url, nil
}
