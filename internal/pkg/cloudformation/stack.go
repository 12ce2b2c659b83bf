package cloudformation

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/andrey-berenda/locadora/internal/pkg/ptr"
)

// SweepSchedule fires at 00:05 in America/Sao_Paulo.
var SweepSchedule = &awsevents.CronOptions{
	Minute: ptr.Of("5"),
	Hour:   ptr.Of("3"),
}

func NewStack(scope constructs.Construct, id string, props *awscdk.StackProps) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, props)

	dbUsername := awscdk.NewCfnParameter(stack, ptr.Of("DBUsername"), &awscdk.CfnParameterProps{
		NoEcho:      ptr.Of(true),
		Description: ptr.Of("PostgreSQL database username"),
		Type:        ptr.Of("String"),
	})

	dbPassword := awscdk.NewCfnParameter(stack, ptr.Of("DBPassword"), &awscdk.CfnParameterProps{
		NoEcho:      ptr.Of(true),
		Description: ptr.Of("PostgreSQL database password"),
		Type:        ptr.Of("String"),
	})

	databaseURLSecret := secretParameter(stack, "DatabaseURLSecretId", "Secrets Manager id holding DATABASE_URL")
	asaasAPIKeySecret := secretParameter(stack, "AsaasApiKeySecretId", "Secrets Manager id holding the Asaas API key")
	twilioAuthTokenSecret := secretParameter(stack, "TwilioAuthTokenSecretId", "Secrets Manager id holding the Twilio auth token")

	asaasWebhookToken := awscdk.NewCfnParameter(stack, ptr.Of("AsaasWebhookToken"), &awscdk.CfnParameterProps{
		NoEcho:      ptr.Of(true),
		Description: ptr.Of("Value Asaas sends in the asaas-access-token header"),
		Type:        ptr.Of("String"),
		Default:     ptr.Of(""),
	})
	twilioAccountSID := plainParameter(stack, "TwilioAccountSid", "Twilio account SID")
	twilioWhatsAppFrom := plainParameter(stack, "TwilioWhatsAppFrom", "Twilio WhatsApp sender number")
	telegramBotToken := awscdk.NewCfnParameter(stack, ptr.Of("TelegramBotToken"), &awscdk.CfnParameterProps{
		NoEcho:      ptr.Of(true),
		Description: ptr.Of("Telegram bot for operator copies"),
		Type:        ptr.Of("String"),
		Default:     ptr.Of(""),
	})
	telegramOpsChatID := plainParameter(stack, "TelegramOpsChatId", "Telegram chat for operator copies")

	defaultVpc := awsec2.Vpc_FromLookup(stack, ptr.Of("VPC"), &awsec2.VpcLookupOptions{
		IsDefault: ptr.Of(true),
		Region:    stack.Region(),
	})

	dbSg := awsec2.NewSecurityGroup(stack, ptr.Of("DBSecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:               defaultVpc,
		SecurityGroupName: ptr.Of("DBSecurityGroup"),
	})
	dbSg.AddIngressRule(
		awsec2.Peer_AnyIpv4(),
		awsec2.NewPort(&awsec2.PortProps{
			StringRepresentation: ptr.Of("db"),
			Protocol:             awsec2.Protocol_TCP,
			FromPort:             jsii.Number(5432),
			ToPort:               jsii.Number(5432),
		}),
		nil,
		nil,
	)

	awsrds.NewCfnDBInstance(stack, ptr.Of("DBInstance"), &awsrds.CfnDBInstanceProps{
		AllocatedStorage:     ptr.Of("20"),
		PubliclyAccessible:   ptr.Of(true),
		MasterUsername:       dbUsername.ValueAsString(),
		MasterUserPassword:   dbPassword.ValueAsString(),
		VpcSecurityGroups:    &[]*string{dbSg.SecurityGroupId()},
		EngineVersion:        ptr.Of("14.6"),
		Engine:               ptr.Of("postgres"),
		DbInstanceClass:      ptr.Of("db.t3.micro"),
		DbInstanceIdentifier: ptr.Of("locadora"),
	})

	environment := &map[string]*string{
		"LOG_PATH":                    ptr.Of("stdout"),
		"TIMEZONE":                    ptr.Of("America/Sao_Paulo"),
		"DATABASE_URL_SECRET_ID":      databaseURLSecret.ValueAsString(),
		"ASAAS_API_KEY_SECRET_ID":     asaasAPIKeySecret.ValueAsString(),
		"ASAAS_WEBHOOK_TOKEN":         asaasWebhookToken.ValueAsString(),
		"TWILIO_ACCOUNT_SID":          twilioAccountSID.ValueAsString(),
		"TWILIO_AUTH_TOKEN_SECRET_ID": twilioAuthTokenSecret.ValueAsString(),
		"TWILIO_WHATSAPP_FROM":        twilioWhatsAppFrom.ValueAsString(),
		"TELEGRAM_BOT_TOKEN":          telegramBotToken.ValueAsString(),
		"TELEGRAM_OPS_CHAT_ID":        telegramOpsChatID.ValueAsString(),
	}

	readSecrets := awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: &[]*string{
			ptr.Of("secretsmanager:GetSecretValue"),
		},
		Resources: &[]*string{ptr.Of("*")},
	})

	webhookFn := awscdklambdagoalpha.NewGoFunction(stack, ptr.Of("AsaasWebhookLambda"), &awscdklambdagoalpha.GoFunctionProps{
		FunctionName: ptr.Of("AsaasWebhook"),
		Entry:        ptr.Of("cmd/webhook-lambda"),
		Environment:  environment,
		Timeout:      awscdk.Duration_Seconds(jsii.Number(30)),
	})
	webhookFn.AddToRolePolicy(readSecrets)
	webhookURL := webhookFn.AddFunctionUrl(&awslambda.FunctionUrlOptions{
		AuthType: awslambda.FunctionUrlAuthType_NONE,
	})
	awscdk.NewCfnOutput(stack, ptr.Of("AsaasWebhookURL"), &awscdk.CfnOutputProps{
		Value: webhookURL.Url(),
	})

	sweepFn := awscdklambdagoalpha.NewGoFunction(stack, ptr.Of("OverdueSweepLambda"), &awscdklambdagoalpha.GoFunctionProps{
		FunctionName: ptr.Of("OverdueSweep"),
		Entry:        ptr.Of("cmd/sweep-lambda"),
		Environment:  environment,
		Timeout:      awscdk.Duration_Minutes(jsii.Number(2)),
	})
	sweepFn.AddToRolePolicy(readSecrets)

	awsevents.NewRule(stack, ptr.Of("OverdueSweepSchedule"), &awsevents.RuleProps{
		Schedule: awsevents.Schedule_Cron(SweepSchedule),
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(sweepFn, nil),
		},
	})

	return stack
}

func secretParameter(stack awscdk.Stack, id string, description string) awscdk.CfnParameter {
	return awscdk.NewCfnParameter(stack, ptr.Of(id), &awscdk.CfnParameterProps{
		Description: ptr.Of(description),
		Type:        ptr.Of("String"),
	})
}

func plainParameter(stack awscdk.Stack, id string, description string) awscdk.CfnParameter {
	return awscdk.NewCfnParameter(stack, ptr.Of(id), &awscdk.CfnParameterProps{
		Description: ptr.Of(description),
		Type:        ptr.Of("String"),
		Default:     ptr.Of(""),
	})
}
