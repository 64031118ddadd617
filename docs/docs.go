// Package docs holds the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tournaments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Create a tournament lobby",
                "parameters": [
                    {"description": "Lobby size and alias choice", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.CreateLobbyInput"}}
                ],
                "responses": {
                    "201": {"description": "lobby_id", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/tournaments/{lobbyID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Get lobby, participants and bracket rounds",
                "parameters": [
                    {"type": "string", "description": "Lobby ID", "name": "lobbyID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Snapshot"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Delete a lobby",
                "parameters": [
                    {"type": "string", "description": "Lobby ID", "name": "lobbyID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/tournaments/{lobbyID}/join": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Join a waiting lobby",
                "parameters": [
                    {"type": "string", "description": "Lobby ID", "name": "lobbyID", "in": "path", "required": true},
                    {"description": "Alias choice", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/services.JoinLobbyInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "409": {"description": "Lobby full or already started", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/tournaments/{lobbyID}/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Start a full lobby",
                "parameters": [
                    {"type": "string", "description": "Lobby ID", "name": "lobbyID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Snapshot"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/tournaments/{lobbyID}/matches/{matchID}/room": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["matches"],
                "summary": "Get or create the game room of a match",
                "parameters": [
                    {"type": "string", "description": "Lobby ID", "name": "lobbyID", "in": "path", "required": true},
                    {"type": "string", "description": "Match ID", "name": "matchID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "room_id", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/tournaments/{lobbyID}/matches/{matchID}/complete": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["matches"],
                "summary": "Report a match result",
                "parameters": [
                    {"type": "string", "description": "Lobby ID", "name": "lobbyID", "in": "path", "required": true},
                    {"type": "string", "description": "Match ID", "name": "matchID", "in": "path", "required": true},
                    {"description": "Result evidence", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/services.CompletionReport"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.CompletionResult"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "422": {"description": "Winner could not be determined", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.errorBody": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "services.CreateLobbyInput": {
            "type": "object",
            "properties": {
                "size": {"type": "integer", "minimum": 3, "maximum": 8},
                "alias_mode": {"type": "string", "enum": ["display_name", "custom"]},
                "alias": {"type": "string", "maxLength": 32}
            }
        },
        "services.JoinLobbyInput": {
            "type": "object",
            "properties": {
                "alias_mode": {"type": "string", "enum": ["display_name", "custom"]},
                "alias": {"type": "string", "maxLength": 32}
            }
        },
        "services.CompletionReport": {
            "type": "object",
            "properties": {
                "winner_slot": {"type": "string", "enum": ["p1", "p2"]},
                "winner_side": {"type": "string", "enum": ["host", "guest"]},
                "p1_score": {"type": "integer"},
                "p2_score": {"type": "integer"},
                "host_score": {"type": "integer"},
                "guest_score": {"type": "integer"}
            }
        },
        "services.CompletionResult": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "updated": {"type": "boolean"},
                "winner_user_id": {"type": "integer"},
                "lobby_finished": {"type": "boolean"}
            }
        },
        "models.Lobby": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "host_id": {"type": "integer"},
                "size": {"type": "integer"},
                "seats_taken": {"type": "integer"},
                "status": {"type": "string", "enum": ["waiting", "started", "cancelled", "finished"]},
                "created_at": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "last_activity_at": {"type": "string"},
                "host_changed_at": {"type": "string"}
            }
        },
        "models.Participant": {
            "type": "object",
            "properties": {
                "lobby_id": {"type": "string"},
                "user_id": {"type": "integer"},
                "alias": {"type": "string"},
                "joined_at": {"type": "string"}
            }
        },
        "models.Match": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "lobby_id": {"type": "string"},
                "round": {"type": "integer"},
                "match_index": {"type": "integer"},
                "p1_user_id": {"type": "integer"},
                "p1_alias": {"type": "string"},
                "p2_user_id": {"type": "integer"},
                "p2_alias": {"type": "string"},
                "room_id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "active", "finished"]},
                "winner_user_id": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "services.Snapshot": {
            "type": "object",
            "properties": {
                "lobby": {"$ref": "#/definitions/models.Lobby"},
                "participants": {"type": "array", "items": {"$ref": "#/definitions/models.Participant"}},
                "rounds": {"type": "array", "items": {"type": "array", "items": {"$ref": "#/definitions/models.Match"}}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Pong Tournaments API",
	Description:      "Bracket tournament lobbies with live 1v1 game rooms.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
