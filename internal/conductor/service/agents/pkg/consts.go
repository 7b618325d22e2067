package pkg

const ModuleName = "agents"
