package graphql

// Schema is the GraphQL surface of the account and device API.
const Schema = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	me: User!
	users(limit: Int, offset: Int): UserPage!
	guestDevice(deviceId: String!): PublicDevice!
}

type Mutation {
	registerDeviceToken(deviceId: String, pushToken: String!, timezone: String): DeviceRegistration!
	linkGuestDevice(deviceId: String!): GuestDevice!
	logout: Boolean!
	sendNotification(input: NotificationInput!): PushResult!
}

type User {
	id: ID!
	email: String!
	role: String!
	isActive: Boolean!
	firstName: String!
	lastName: String!
	phoneNumber: String!
	createdAt: String
}

type UserPage {
	data: [User!]!
	total: Int!
}

type GuestDevice {
	id: ID!
	deviceId: String!
	pushToken: String
	timezone: String
	isActive: Boolean!
	userId: ID
	createdAt: String
	updatedAt: String
}

type PublicDevice {
	id: ID!
	timezone: String
	isActive: Boolean!
}

type DeviceRegistration {
	device: GuestDevice!
	deviceId: String!
	needsDeviceId: Boolean!
}

type PushFailure {
	to: String!
	code: String
	message: String
}

type PushResult {
	successCount: Int!
	failureCount: Int!
	messageIds: [String!]!
	failures: [PushFailure!]!
}

input DataEntry {
	key: String!
	value: String!
}

# Exactly one of deviceId, userId or broadcast selects the recipients.
input NotificationInput {
	deviceId: String
	userId: ID
	broadcast: Boolean
	title: String!
	body: String!
	data: [DataEntry!]
}
`
