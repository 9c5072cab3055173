package observability

const (
	AttrServiceName     = "service.name"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"

	SpanQuery         = "query.answer"
	SpanLLMRequest    = "query.llm_request"
	SpanToolExecution = "query.tool_execution"
	SpanRetrieval     = "query.retrieval"

	DefaultServiceName = "planqa"
)
