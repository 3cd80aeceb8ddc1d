// builtin_ai.go — the ai namespace.
//
// The actual model calls go through the host-supplied AIClient; the
// builtins only validate arguments and translate values. Gated behind
// EnableAI, and DryRun short-circuits with a description.
package buddyscript

func registerAIBuiltins(r *Registry) {
	r.RegisterNamespace("ai", []NamespaceEntry{
		{Name: "ask", Params: []string{"prompt"}, Capability: "ai", Impl: aiAsk},
		{Name: "chat", Params: []string{"messages"}, Capability: "ai", Impl: aiChat},
		{Name: "complete", Params: []string{"prompt", "maxTokens"}, Capability: "ai", Impl: aiComplete},
	})
}

func aiClient(c *BuiltinCall) (AIClient, error) {
	if c.Interp.opts.AI == nil {
		return nil, c.Errf("%s: no AI client configured", c.Name)
	}
	return c.Interp.opts.AI, nil
}

func aiAsk(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	prompt, err := c.StringArg(0, "prompt")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would ask the model: %s", prompt)
		return StringValue(""), nil
	}
	client, err := aiClient(c)
	if err != nil {
		return Value{}, err
	}
	answer, aerr := client.Ask(c.Interp.ctx, prompt)
	if aerr != nil {
		return Value{}, c.Errf("ai.ask: %s", aerr)
	}
	return StringValue(answer), nil
}

// ai.chat takes an array of {role, content} objects.
func aiChat(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	arr, err := c.ArrayArg(0, "messages")
	if err != nil {
		return Value{}, err
	}
	messages := make([]ChatMessage, 0, len(arr.Elems))
	for idx, el := range arr.Elems {
		if el.Tag != TagObject {
			return Value{}, c.Errf("ai.chat: message %d must be an object, got %s", idx, el.TypeName())
		}
		m := el.Object()
		role, _ := m.Get("role")
		content, _ := m.Get("content")
		if role.Tag != TagString || content.Tag != TagString {
			return Value{}, c.Errf("ai.chat: message %d needs string 'role' and 'content'", idx)
		}
		messages = append(messages, ChatMessage{Role: role.Str(), Content: content.Str()})
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would send a %d-message chat to the model", len(messages))
		return StringValue(""), nil
	}
	client, err := aiClient(c)
	if err != nil {
		return Value{}, err
	}
	answer, aerr := client.Chat(c.Interp.ctx, messages)
	if aerr != nil {
		return Value{}, c.Errf("ai.chat: %s", aerr)
	}
	return StringValue(answer), nil
}

func aiComplete(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 2); err != nil {
		return Value{}, err
	}
	prompt, err := c.StringArg(0, "prompt")
	if err != nil {
		return Value{}, err
	}
	maxTokens := 0
	if len(c.Args) == 2 {
		if maxTokens, err = c.IntArg(1, "maxTokens"); err != nil {
			return Value{}, err
		}
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would request a completion (maxTokens=%d)", maxTokens)
		return StringValue(""), nil
	}
	client, err := aiClient(c)
	if err != nil {
		return Value{}, err
	}
	answer, aerr := client.Complete(c.Interp.ctx, prompt, maxTokens)
	if aerr != nil {
		return Value{}, c.Errf("ai.complete: %s", aerr)
	}
	return StringValue(answer), nil
}
