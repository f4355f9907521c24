// Package httpclient builds and sends the paginated listing request.
//
// [NewRequestBuilder] resolves the target once, merging the page and size
// query parameters, and validates the configured headers:
//
//	builder, err := httpclient.NewRequestBuilder(cfg, authProvider)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx)
//
// [NewClient] returns a client with a pooled transport. One client is shared
// by all virtual users so connections are reused across iterations:
//
//	client := httpclient.NewClient(30 * time.Second)
//	resp, err := client.Do(req)
//	httpclient.Drain(resp)
package httpclient
