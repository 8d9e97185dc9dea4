// Package fieldwatch watches the YAML front-matter of a Markdown vault and
// reacts when watched fields change.
//
// Two kinds of rules are read from <vault>/.fieldwatch/settings.yaml:
//
//   - Header rules keep a line of the document body in sync with a field.
//     The first line starting with the configured header text is rewritten
//     to "<header> <value>".
//   - Action rules invoke a registered action when a field changes. The
//     first observation of a field only records its value.
//
// The last observed value of every watched (document, field) pair lives in
// an in-memory baseline cache, seeded when a document is opened and
// compared on every change notification.
//
// Usage:
//
//	engine, err := fieldwatch.New("./vault",
//		fieldwatch.WithLogger(logger),
//		fieldwatch.WithAction("notify", "Notify", notify),
//	)
//	if err != nil {
//		return err
//	}
//	return engine.Run(ctx)
package fieldwatch
