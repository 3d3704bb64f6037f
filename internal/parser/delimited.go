package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"callsieve/internal/catalog"
	apperrors "callsieve/internal/errors"
	"callsieve/internal/grammar"
	"callsieve/internal/logging"
	jsonx "callsieve/internal/shared/json"
)

// callRuleFormat reproduces the {"name": "<name>", "arguments": <schema>}
// payload layout as an EBNF production.
const callRuleFormat = `"{\"name\": \"{name}\", \"arguments\": " {arguments_rule} "}"`

// DelimitedDetector handles formats that wrap a {"name", "arguments"} JSON
// object between a literal opening and closing marker.
//
// In one-shot mode text after the last call is dropped; callers that need
// it should use the streaming entry point and Flush.
type DelimitedDetector struct {
	format  string
	opener  string
	closer  string
	pattern *regexp.Regexp

	state      DetectorState
	logger     logging.Logger
	metrics    Metrics
	composer   GrammarComposer
	onDegraded func(error)
}

var _ Detector = (*DelimitedDetector)(nil)

// NewDelimitedDetector builds a detector for an arbitrary marker pair.
func NewDelimitedDetector(format, opener, closer string, opts ...Option) *DelimitedDetector {
	o := buildOptions(opts)
	return &DelimitedDetector{
		format:     format,
		opener:     opener,
		closer:     closer,
		pattern:    regexp.MustCompile(`(?s)` + regexp.QuoteMeta(opener) + `\s*(.*?)\s*` + regexp.QuoteMeta(closer)),
		state:      NewDetectorState(),
		logger:     o.logger,
		metrics:    o.metrics,
		composer:   o.composer,
		onDegraded: o.onDegraded,
	}
}

func (d *DelimitedDetector) Format() string {
	return d.format
}

// Delimiters returns the opening and closing markers.
func (d *DelimitedDetector) Delimiters() (string, string) {
	return d.opener, d.closer
}

func (d *DelimitedDetector) HasToolCall(text string) bool {
	return strings.Contains(text, d.opener)
}

// DetectAndParse extracts all complete calls from text. If any region fails
// to decode the original text is returned with no calls.
func (d *DelimitedDetector) DetectAndParse(text string, tools *catalog.Catalog) ExtractionResult {
	start := strings.Index(text, d.opener)
	if start == -1 {
		return ExtractionResult{NormalText: text}
	}
	normal := strings.TrimSpace(text[:start])

	var calls []ToolCallItem
	for _, region := range d.findCalls(text) {
		call, err := decodeCall(region.Payload)
		if err != nil {
			d.logger.Error("Error parsing %s tool call at offset %d: %v", d.format, region.Start, err)
			return ExtractionResult{NormalText: text}
		}
		item, ok, err := d.parseBaseJSON(call, len(calls), tools)
		if err != nil {
			d.logger.Error("Error encoding %s tool call arguments: %v", d.format, err)
			return ExtractionResult{NormalText: text}
		}
		if !ok {
			continue
		}
		calls = append(calls, item)
		d.metrics.ObserveCall(d.format, false)
	}
	return ExtractionResult{NormalText: normal, Calls: calls}
}

// findCalls returns every non-overlapping bounded region in text.
func (d *DelimitedDetector) findCalls(text string) []DelimitedCall {
	matches := d.pattern.FindAllStringSubmatchIndex(text, -1)
	regions := make([]DelimitedCall, 0, len(matches))
	for _, m := range matches {
		regions = append(regions, DelimitedCall{
			Start:   m[0],
			End:     m[1],
			Payload: strings.TrimSpace(text[m[2]:m[3]]),
		})
	}
	return regions
}

// parseBaseJSON forwards a decoded call to the catalog. Rejected names are
// dropped; accepted calls carry their full arguments ("{}" when empty).
func (d *DelimitedDetector) parseBaseJSON(call payloadCall, index int, tools *catalog.Catalog) (ToolCallItem, bool, error) {
	if !tools.Accept(call.Name) {
		return ToolCallItem{}, false, nil
	}
	args, err := encodeArguments(call.Arguments)
	if err != nil {
		return ToolCallItem{}, false, err
	}
	if args == "" {
		args = "{}"
	}
	return ToolCallItem{ToolIndex: index, Name: call.Name, Parameters: args}, true, nil
}

// ParseStreamingIncrement appends fragment to the pending buffer and emits
// what can be resolved. Without an opening delimiter the fragment passes
// through as plain text. Once one is seen the buffer is held, prefix
// included, and steps emit a call name once, argument increments, or a
// completed call. Unexpected failures degrade to returning the buffered text
// as plain text.
func (d *DelimitedDetector) ParseStreamingIncrement(fragment string, tools *catalog.Catalog) (result ExtractionResult) {
	d.state.Buffer += fragment
	text := d.state.Buffer

	defer func() {
		if r := recover(); r != nil {
			result = d.degrade(text, fmt.Errorf("panic: %v", r))
		}
		d.metrics.ObserveStep(d.format, len(d.state.Buffer))
	}()

	if !strings.Contains(text, d.opener) {
		joined := d.state.OpenerTail + text
		start := strings.Index(joined, d.opener)
		if start == -1 {
			d.state.OpenerTail = trailing(joined, len(d.opener)-1)
			d.state.Buffer = ""
			return ExtractionResult{NormalText: d.stripClosers(fragment)}
		}
		// The opener began in text that already went out; only the
		// delimiter onwards is buffered.
		text = joined[start:]
	}
	d.state.OpenerTail = ""
	d.state.Buffer = text

	region := d.locate(text)
	step, err := d.resolve(region)
	if err != nil {
		return d.degrade(text, err)
	}
	return step
}

// locate finds the first call region in text, which must contain the opener.
// End points past the closing delimiter, or is -1 while it is missing.
func (d *DelimitedDetector) locate(text string) DelimitedCall {
	start := strings.Index(text, d.opener)
	bodyStart := start + len(d.opener)
	end := strings.Index(text[bodyStart:], d.closer)
	if end == -1 {
		return DelimitedCall{Start: start, End: -1, Payload: strings.TrimSpace(text[bodyStart:])}
	}
	return DelimitedCall{
		Start:   start,
		End:     bodyStart + end + len(d.closer),
		Payload: strings.TrimSpace(text[bodyStart : bodyStart+end]),
	}
}

func (d *DelimitedDetector) resolve(region DelimitedCall) (ExtractionResult, error) {
	if region.Complete() {
		call, err := decodeCall(region.Payload)
		if errors.Is(err, errIncomplete) {
			// Bounded but unparsable: leave it buffered and retry later.
			return ExtractionResult{}, nil
		}
		if err != nil {
			return ExtractionResult{}, err
		}
		item, err := d.completeCall(call)
		if err != nil {
			return ExtractionResult{}, err
		}
		d.state.Buffer = d.state.Buffer[region.End:]
		return ExtractionResult{Calls: []ToolCallItem{item}}, nil
	}

	if !IsCompleteJSON(region.Payload) {
		return ExtractionResult{}, nil
	}
	call, err := decodeCall(region.Payload)
	if err != nil {
		return ExtractionResult{}, err
	}
	calls, err := d.partialCall(call)
	if err != nil {
		return ExtractionResult{}, err
	}
	return ExtractionResult{Calls: calls}, nil
}

// completeCall records a call whose closing delimiter was consumed and moves
// to the next index. If the name was already streamed only the remaining
// argument text is emitted.
func (d *DelimitedDetector) completeCall(call payloadCall) (ToolCallItem, error) {
	args, err := encodeArguments(call.Arguments)
	if err != nil {
		return ToolCallItem{}, err
	}

	d.state.ensureTracking()
	idx := d.state.CurrentToolID
	item := ToolCallItem{ToolIndex: idx}
	if d.state.NameSent {
		item.Parameters = d.emitArguments(args)
	} else {
		item.Name = call.Name
		item.Parameters = args
		d.state.StreamedArgs[idx] = args
	}
	d.state.PrevToolCalls[idx] = CallSnapshot{Name: call.Name, Arguments: rawArguments(args)}
	d.state.advance()
	d.metrics.ObserveCall(d.format, true)
	return item, nil
}

// partialCall handles a payload that is complete JSON before its closing
// delimiter: the name goes out once, then argument increments.
func (d *DelimitedDetector) partialCall(call payloadCall) ([]ToolCallItem, error) {
	args, err := encodeArguments(call.Arguments)
	if err != nil {
		return nil, err
	}

	d.state.ensureTracking()
	idx := d.state.CurrentToolID
	var calls []ToolCallItem
	if !d.state.NameSent {
		calls = append(calls, ToolCallItem{ToolIndex: idx, Name: call.Name})
		d.state.NameSent = true
		d.state.PrevToolCalls[idx] = CallSnapshot{Name: call.Name}
	}
	if diff := d.emitArguments(args); diff != "" {
		calls = append(calls, ToolCallItem{ToolIndex: idx, Parameters: diff})
		d.state.PrevToolCalls[idx].Arguments = rawArguments(args)
	}
	return calls, nil
}

// emitArguments computes the increment for the current call and records it.
func (d *DelimitedDetector) emitArguments(args string) string {
	diff, rewritten := argumentDiff(d.state.LastArguments, args)
	if rewritten {
		d.logger.Debug("%s call %d arguments rewritten at offset %d, re-emitting %d bytes",
			d.format, d.state.CurrentToolID, divergenceOffset(d.state.LastArguments, args), len(args))
	}
	if diff == "" {
		return ""
	}
	d.state.LastArguments += diff
	d.state.StreamedArgs[d.state.CurrentToolID] += diff
	return diff
}

// degrade returns the whole buffered text as plain text and clears it.
func (d *DelimitedDetector) degrade(text string, cause error) ExtractionResult {
	err := &apperrors.DegradedError{
		Err:             cause,
		FallbackContent: text,
		Message:         fmt.Sprintf("%s streaming step degraded: %v", d.format, cause),
	}
	d.logger.Error("%v (returning %d buffered bytes as text)", err, len(text))
	d.metrics.ObserveDegraded(d.format)
	d.onDegraded(err)
	// Dropped rather than retained, so degraded bytes are never replayed.
	d.state.Buffer = ""
	d.state.OpenerTail = ""
	return ExtractionResult{NormalText: text}
}

// Flush drains the buffer at the end of a stream. Calls still waiting behind
// a consumed one are resolved. A call whose payload was already surfaced is
// finished without a closing delimiter; any other leftover is plain text.
func (d *DelimitedDetector) Flush(tools *catalog.Catalog) ExtractionResult {
	var out ExtractionResult
	for strings.Contains(d.state.Buffer, d.opener) {
		before := d.state.Buffer
		step := d.ParseStreamingIncrement("", tools)
		out.NormalText += step.NormalText
		out.Calls = append(out.Calls, step.Calls...)
		if d.state.Buffer == before {
			break
		}
	}

	rest := d.state.Buffer
	switch {
	case !strings.Contains(rest, d.opener):
		out.NormalText += d.stripClosers(rest)
	case d.state.NameSent:
		d.logger.Debug("%s call %d finished at end of stream without a closing delimiter", d.format, d.state.CurrentToolID)
		d.state.advance()
		d.metrics.ObserveCall(d.format, true)
	default:
		out.NormalText += rest
	}
	d.state.Buffer = ""
	d.state.OpenerTail = ""
	return out
}

func (d *DelimitedDetector) StructureInfo() StructureInfoFunc {
	return func(name string) StructureInfo {
		begin := `{"name": "` + name + `", "arguments": `
		return StructureInfo{Begin: begin, End: "}", Trigger: begin}
	}
}

// BuildEBNF asks the composer for a grammar of back-to-back delimited calls.
func (d *DelimitedDetector) BuildEBNF(tools *catalog.Catalog) (string, error) {
	return d.composer.Build(tools.Tools(), grammar.Request{
		SequenceStart:  d.opener,
		SequenceEnd:    d.closer,
		Separator:      "",
		CallRuleFormat: callRuleFormat,
	})
}

func (d *DelimitedDetector) Snapshot() DetectorState {
	return d.state.Clone()
}

func (d *DelimitedDetector) Restore(state DetectorState) {
	d.state = state.Clone()
}

func (d *DelimitedDetector) Reset() {
	d.state = NewDetectorState()
}

// stripClosers removes closing markers leaking into plain text.
func (d *DelimitedDetector) stripClosers(text string) string {
	if text == "" || !strings.Contains(text, d.closer) {
		return text
	}
	return strings.ReplaceAll(text, d.closer, "")
}

// trailing returns at most the last n bytes of text.
func trailing(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[len(text)-n:]
}

func rawArguments(args string) jsonx.RawMessage {
	if args == "" {
		return nil
	}
	return jsonx.RawMessage(args)
}
