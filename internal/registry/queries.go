package registry

// Each query source below extends a per-language symbol/import query with
// a `call`/`call.callee` capture pair so the Extractor can emit Call
// references and tentative call edges from the same pass (the Zig query
// has symbol and @ref patterns only, no imports or calls). Capture names
// follow the `<kind>` / `<kind>.name` convention used throughout for
// .name captures.
//
// Every query also ends with a handful of bare `@ref` patterns over
// identifier-shaped leaf node kinds already proven elsewhere in the same
// query. The Extractor filters these occurrences down to TypeUse and
// FieldAccess references by cross-checking the captured text against
// known type/field symbol names, after excluding anything already
// classified as a declaration name or call callee.

const goQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_declaration
    receiver: (parameter_list) @method.receiver
    name: (field_identifier) @method.name) @method
(type_declaration
    (type_spec name: (type_identifier) @type.name
        type: (struct_type))) @struct
(type_declaration
    (type_spec name: (type_identifier) @type.name
        type: (interface_type))) @interface
(type_declaration
    (type_spec name: (type_identifier) @type.name)) @type
(const_declaration (const_spec name: (identifier) @constant.name)) @constant
(var_declaration (var_spec name: (identifier) @variable.name)) @variable
(func_literal) @function
(import_spec path: (interpreted_string_literal) @import.path) @import
(call_expression function: (identifier) @call.callee) @call
(call_expression function: (selector_expression field: (field_identifier) @call.callee)) @call
(identifier) @ref
(type_identifier) @ref
(field_identifier) @ref
`

const javascriptQuery = `
(function_declaration name: (identifier) @function.name) @function
(generator_function_declaration name: (identifier) @function.name) @function
(variable_declarator
    name: (identifier) @function.name
    value: [(arrow_function) (function_expression) (generator_function)]) @function
(variable_declarator
    name: (identifier) @variable.name
    value: (_) @variable.value) @variable
(method_definition name: (property_identifier) @method.name) @method
(class_declaration name: (identifier) @class.name) @class
(export_statement declaration: (_) @export)
(import_statement source: (string) @import.source) @import
(call_expression function: (identifier) @call.callee) @call
(call_expression function: (member_expression property: (property_identifier) @call.callee)) @call
(identifier) @ref
(property_identifier) @ref
`

const typescriptQuery = `
(function_declaration name: (identifier) @function.name) @function
(generator_function_declaration name: (identifier) @function.name) @function
(method_definition name: (property_identifier) @method.name) @method
(function_expression name: (identifier) @function.name) @function
(class_declaration name: (type_identifier) @class.name) @class
(interface_declaration name: (type_identifier) @interface.name) @interface
(type_alias_declaration name: (type_identifier) @type.name) @type
(enum_declaration name: (identifier) @enum.name) @enum
(export_statement declaration: (_) @export)
(import_statement source: (string) @import.source) @import
(call_expression function: (identifier) @call.callee) @call
(call_expression function: (member_expression property: (property_identifier) @call.callee)) @call
(identifier) @ref
(type_identifier) @ref
(property_identifier) @ref
`

const pythonQuery = `
(class_definition
    body: (block
        (function_definition name: (identifier) @method.name))) @method
(function_definition name: (identifier) @function.name) @function
(class_definition name: (identifier) @class.name) @class
(import_statement) @import
(import_from_statement) @import
(call function: (identifier) @call.callee) @call
(call function: (attribute attribute: (identifier) @call.callee)) @call
(identifier) @ref
`

const rustQuery = `
(impl_item
    body: (declaration_list
        (function_item name: (identifier) @method.name))) @method
(trait_item
    body: (declaration_list
        (function_item name: (identifier) @method.name))) @method
(function_item name: (identifier) @function.name) @function
(struct_item name: (type_identifier) @struct.name) @struct
(enum_item name: (type_identifier) @enum.name) @enum
(trait_item name: (type_identifier) @interface.name) @interface
(type_item name: (type_identifier) @type.name) @type
(use_declaration) @import
(mod_item name: (identifier) @module.name) @module
(call_expression function: (identifier) @call.callee) @call
(call_expression function: (field_expression field: (field_identifier) @call.callee)) @call
(identifier) @ref
(type_identifier) @ref
(field_identifier) @ref
`

const cppQuery = `
(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
(class_specifier name: (type_identifier) @class.name) @class
(struct_specifier name: (type_identifier) @struct.name) @struct
(enum_specifier name: (type_identifier) @enum.name) @enum
(namespace_definition) @namespace
(preproc_include) @import
(using_declaration) @import
(call_expression function: (identifier) @call.callee) @call
(call_expression function: (field_expression field: (field_identifier) @call.callee)) @call
(identifier) @ref
(type_identifier) @ref
(field_identifier) @ref
`

const javaQuery = `
(method_declaration name: (identifier) @method.name) @method
(constructor_declaration name: (identifier) @constructor.name) @constructor
(class_declaration name: (identifier) @class.name) @class
(record_declaration name: (identifier) @class.name) @class
(interface_declaration name: (identifier) @interface.name) @interface
(enum_declaration name: (identifier) @enum.name) @enum
(field_declaration declarator: (variable_declarator name: (identifier) @field.name)) @field
(import_declaration) @import
(package_declaration) @package
(method_invocation name: (identifier) @call.callee) @call
(identifier) @ref
`

const csharpQuery = `
(method_declaration name: (identifier) @method.name) @method
(constructor_declaration name: (identifier) @constructor.name) @constructor
(class_declaration name: (identifier) @class.name) @class
(interface_declaration name: (identifier) @interface.name) @interface
(struct_declaration name: (identifier) @struct.name) @struct
(record_declaration name: (identifier) @record.name) @record
(enum_declaration name: (identifier) @enum.name) @enum
(property_declaration name: (identifier) @property.name) @property
(field_declaration
    (variable_declaration
        (variable_declarator (identifier) @field.name))) @field
(using_directive (qualified_name) @using.name) @using
(using_directive (identifier) @using.name) @using
(namespace_declaration name: (qualified_name) @namespace.name) @namespace
(namespace_declaration name: (identifier) @namespace.name) @namespace
(invocation_expression function: (identifier) @call.callee) @call
(invocation_expression function: (member_access_expression name: (identifier) @call.callee)) @call
(identifier) @ref
`

const phpQuery = `
(class_declaration name: (name) @class.name) @class
(interface_declaration name: (name) @interface.name) @interface
(trait_declaration name: (name) @trait.name) @trait
(enum_declaration name: (name) @enum.name) @enum
(function_definition name: (name) @function.name) @function
(method_declaration name: (name) @method.name) @method
(namespace_definition name: (namespace_name) @namespace.name) @namespace
(namespace_use_declaration) @import
(property_declaration) @property
(const_declaration) @constant
(function_call_expression function: (name) @call.callee) @call
(member_call_expression name: (name) @call.callee) @call
(name) @ref
`

const zigQuery = `
(function_declaration (identifier) @function.name) @function
(variable_declaration
  (identifier) @struct.name
  (struct_declaration) @struct)
(variable_declaration
  (identifier) @struct.name
  (union_declaration) @struct)
(identifier) @ref
`
