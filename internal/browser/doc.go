// Package browser declares the rendering collaborator that the harvesting
// engine drives: something that can open a page, find elements by locator,
// click them, scroll a container and hand out element handles.
//
// The engine only depends on the interfaces in this package. The Chrome
// implementation backed by go-rod lives in the chrome subpackage; tests use
// in-memory fakes.
package browser
