// Package evaltest provides Go testing integration for the eval
// framework, allowing eval suites to run as standard Go test functions.
//
// The Harness wraps *testing.T and executes suites through the runner,
// converting each task result into a subtest outcome. Combined with the
// mock package, suites run deterministically without API keys.
//
// Example usage:
//
//	func TestGreeter(t *testing.T) {
//	    providers := eval.Providers{"mock": mock.NewProvider(cannedResponses...)}
//	    h := evaltest.New(t, evaltest.WithProviders(providers))
//
//	    s := eval.NewSuite("greeter", eval.WithAI("mock", "test-model"))
//	    s.Task("greets-by-name", func(tc *eval.Ctx) error {
//	        resp, err := tc.AI.Prompt("Greet Ada.")
//	        if err != nil {
//	            return err
//	        }
//	        return tc.Expect(resp).ToContain("Ada")
//	    })
//
//	    h.RunSuite(s)
//	}
package evaltest
