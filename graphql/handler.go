package graphql

import (
	"net/http"

	"github.com/goliatone/go-router"
	gql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	auth "github.com/goliatone/go-app-auth"
)

// DefaultMaxDepth bounds query nesting
const DefaultMaxDepth = 8

// NewSchema parses the schema against resolver. It panics on a mismatch
// between the schema and the resolver methods.
func NewSchema(resolver *Resolver) *gql.Schema {
	return gql.MustParseSchema(Schema, resolver,
		gql.MaxDepth(DefaultMaxDepth),
	)
}

// NewHandler serves the schema over HTTP. Every request gets a GraphQLCall
// in its context so resolvers can run the guards.
func NewHandler(resolver *Resolver) http.Handler {
	return auth.GraphQLCallMiddleware(&relay.Handler{Schema: NewSchema(resolver)})
}

// Mount registers the handler for POST requests on path. Mutations
// authenticated by the access token cookie must carry the csrf header.
func Mount[T any](app router.Router[T], path string, resolver *Resolver) {
	app.Post(path, router.HandlerFromHTTP(NewHandler(resolver))).SetName("graphql")
}
