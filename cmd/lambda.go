package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/sells-group/outpost/internal/pipeline"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve the runs-table stream handler on the Lambda runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		lambda.Start(streamHandler(env.Processor))
		return nil
	},
}

// streamHandler adapts the processor to the Lambda DynamoDB stream signature.
// It never returns an error: run failures are recorded on the runs, and a
// returned error would make the runtime redeliver the whole batch.
func streamHandler(p *pipeline.Processor) func(context.Context, events.DynamoDBEvent) error {
	return func(ctx context.Context, ev events.DynamoDBEvent) error {
		p.HandleEvent(ctx, ev)
		return nil
	}
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}
