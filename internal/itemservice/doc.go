// Package itemservice is the HTTP client for the external item service that
// performs claims and collections. It only transports requests; outcome
// interpretation and single-flight guarantees live in the dispatch package.
package itemservice
